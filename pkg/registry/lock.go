package registry

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/logger"
)

const (
	defaultLockTimeout = 30 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
	lockRetryJitter    = 50 * time.Millisecond
	// A lock file without a readable PID older than this is considered abandoned.
	unreadableLockAge = 2 * time.Minute
)

var errLockHeld = errors.New("registry lock is held by another process")

type fileLock struct {
	path string
	file *os.File
}

// acquireLock creates path exclusively, writing the current PID into it.
// Locks left behind by processes that no longer exist are broken.
func acquireLock(ctx context.Context, path string, timeout time.Duration) (*fileLock, error) {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lock *fileLock
	err := retry.Do(
		func() error {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
			if err == nil {
				if _, werr := fmt.Fprintf(f, "%d\n", os.Getpid()); werr != nil {
					logger.G(ctx).WithError(werr).Debug("failed to write PID to registry lock")
				}
				lock = &fileLock{path: path, file: f}
				return nil
			}
			if !os.IsExist(err) {
				return retry.Unrecoverable(errors.Wrap(err, "failed to create lock file"))
			}
			breakStaleLock(ctx, path)
			return errLockHeld
		},
		retry.Context(waitCtx),
		retry.Attempts(0),
		retry.Delay(lockRetryDelay),
		retry.MaxJitter(lockRetryJitter),
		retry.DelayType(retry.CombineDelay(retry.FixedDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return lock, nil
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(errdefs.ErrCancelled, "waiting for registry lock")
	}
	if waitCtx.Err() != nil {
		return nil, errors.Errorf("timeout waiting for registry lock %s", path)
	}
	return nil, err
}

// breakStaleLock removes path when the process that wrote it is gone.
func breakStaleLock(ctx context.Context, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < unreadableLockAge {
			return false
		}
	} else if alive, err := process.PidExists(int32(pid)); err != nil || alive {
		return false
	}

	if err := os.Remove(path); err != nil {
		return false
	}
	logger.G(ctx).WithField("lock", path).Warn("removed stale registry lock")
	return true
}

func (l *fileLock) release() error {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	return err
}

func withLock(ctx context.Context, path string, timeout time.Duration, fn func() error) error {
	lock, err := acquireLock(ctx, path, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.release(); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to release registry lock")
		}
	}()
	return fn()
}
