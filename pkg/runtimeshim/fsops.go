package runtimeshim

import (
	"context"
	"io"
	"net"
	"os"
	"time"
)

// run is supplied by each concrete Runtime implementation. It executes fn
// under that implementation's scheduling model and returns fn's error,
// or a context error if ctx is done first.
type run func(ctx context.Context, fn func(context.Context) error) error

// fsops implements every filesystem-shaped operation on top of a run
// function; MultiThreaded and Cooperative differ only in how run schedules
// work, so the operations themselves are shared here.
type fsops struct {
	run run
}

func (f fsops) ReadToBytes(ctx context.Context, path string) ([]byte, error) {
	var out []byte
	err := f.run(ctx, func(context.Context) error {
		b, err := os.ReadFile(path)
		out = b
		return wrapErr("read", path, err)
	})
	return out, err
}

func (f fsops) WriteAll(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	return f.run(ctx, func(context.Context) error {
		return wrapErr("write", path, os.WriteFile(path, data, perm))
	})
}

func (f fsops) CreateDirAll(ctx context.Context, path string, perm os.FileMode) error {
	return f.run(ctx, func(context.Context) error {
		return wrapErr("mkdir_all", path, os.MkdirAll(path, perm))
	})
}

func (f fsops) RemoveFile(ctx context.Context, path string) error {
	return f.run(ctx, func(context.Context) error {
		err := os.Remove(path)
		if err != nil && os.IsNotExist(err) {
			return nil
		}
		return wrapErr("remove", path, err)
	})
}

func (f fsops) RemoveDirAll(ctx context.Context, path string) error {
	return f.run(ctx, func(context.Context) error {
		return wrapErr("remove_all", path, os.RemoveAll(path))
	})
}

func (f fsops) Rename(ctx context.Context, oldPath, newPath string) error {
	return f.run(ctx, func(context.Context) error {
		return wrapErr("rename", oldPath, os.Rename(oldPath, newPath))
	})
}

func (f fsops) Copy(ctx context.Context, src, dst string) (int64, error) {
	var n int64
	err := f.run(ctx, func(context.Context) error {
		in, err := os.Open(src)
		if err != nil {
			return wrapErr("copy_open", src, err)
		}
		defer in.Close()

		info, err := in.Stat()
		if err != nil {
			return wrapErr("copy_stat", src, err)
		}

		out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return wrapErr("copy_create", dst, err)
		}
		defer out.Close()

		n, err = io.Copy(out, in)
		return wrapErr("copy", dst, err)
	})
	return n, err
}

func (f fsops) Symlink(ctx context.Context, target, linkPath string) error {
	return f.run(ctx, func(context.Context) error {
		return wrapErr("symlink", linkPath, os.Symlink(target, linkPath))
	})
}

func (f fsops) HardLink(ctx context.Context, src, dst string) error {
	return f.run(ctx, func(context.Context) error {
		return wrapErr("link", dst, os.Link(src, dst))
	})
}

func (f fsops) Metadata(ctx context.Context, path string) (os.FileInfo, error) {
	var info os.FileInfo
	err := f.run(ctx, func(context.Context) error {
		i, err := os.Stat(path)
		info = i
		return wrapErr("stat", path, err)
	})
	return info, err
}

func (f fsops) SetPermissions(ctx context.Context, path string, perm os.FileMode) error {
	return f.run(ctx, func(context.Context) error {
		return wrapErr("chmod", path, os.Chmod(path, perm))
	})
}

func (f fsops) Sleep(ctx context.Context, d time.Duration) error {
	return f.run(ctx, func(innerCtx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-innerCtx.Done():
			return innerCtx.Err()
		}
	})
}

func (f fsops) Timeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := f.run(timeoutCtx, fn)
	if err == context.DeadlineExceeded {
		return wrapErr("timeout", "", err)
	}
	return err
}

func (f fsops) ProbeUnixSocket(ctx context.Context, path string) error {
	return f.run(ctx, func(context.Context) error {
		conn, err := net.Dial("unix", path)
		if err != nil {
			return wrapErr("probe_socket", path, err)
		}
		return conn.Close()
	})
}
