package runtimeshim

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// unixHTTPClient implements HTTPClient over a lazily-dialed Unix domain
// stream socket. The underlying *http.Transport keeps idle connections for
// reuse and does not limit how many connections are open at once. Every
// round trip runs through
// run so Cooperative serializes API calls onto its one worker goroutine the
// same as every other runtimeshim operation.
type unixHTTPClient struct {
	socketPath string
	run        run

	mu     sync.Mutex
	client *http.Client
}

func newUnixHTTPClient(socketPath string, run run) *unixHTTPClient {
	return &unixHTTPClient{socketPath: socketPath, run: run}
}

func (f fsops) DialUnixHTTP(socketPath string) HTTPClient {
	return newUnixHTTPClient(socketPath, f.run)
}

func (u *unixHTTPClient) ensureClient() *http.Client {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client != nil {
		return u.client
	}
	dialer := &net.Dialer{}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", u.socketPath)
		},
		IdleConnTimeout: 30 * time.Second,
	}
	u.client = &http.Client{Transport: transport}
	return u.client
}

func (u *unixHTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := u.run(req.Context(), func(context.Context) error {
		r, doErr := u.ensureClient().Do(req)
		resp = r
		return doErr
	})
	if err != nil {
		return nil, wrapErr("http_do", u.socketPath, err)
	}
	return resp, nil
}

func (u *unixHTTPClient) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client == nil {
		return nil
	}
	if transport, ok := u.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	u.client = nil
	return nil
}
