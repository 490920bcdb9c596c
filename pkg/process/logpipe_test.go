package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/pipeops/firecracker-sdk/pkg/sysshim"
)

func TestOpenLogTailCreatesFifoAndStreams(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fifo test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "firecracker.log")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tail, err := OpenLogTail(ctx, sysshim.UnixSyscalls{}, path)
	if err != nil {
		t.Fatalf("OpenLogTail: %v", err)
	}
	defer tail.Close()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	entry := logrus.NewEntry(logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		tail.Pump(ctx, entry)
	}()

	writer, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile writer: %v", err)
	}
	defer writer.Close()

	if _, err := writer.WriteString("hello from firecracker\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if len(hook.AllEntries()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for log line to be pumped")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestOpenLogTailReusesExistingFifo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fifo test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "firecracker.log")

	if err := (sysshim.UnixSyscalls{}).Mkfifo(path, 0o600); err != nil {
		t.Fatalf("Mkfifo: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tail, err := OpenLogTail(ctx, sysshim.UnixSyscalls{}, path)
	if err != nil {
		t.Fatalf("OpenLogTail on pre-existing fifo: %v", err)
	}
	tail.Close()
}
