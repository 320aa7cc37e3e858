package sink

import (
	"context"

	"github.com/cenkalti/backoff"
)

// WithRetry wraps sink so that a transient failure of any single call is
// retried under policy before being surfaced to the caller. It never
// retries the syscall handler that produced the call, only the sink RPC
// itself — matching runsc/container's use of cenkalti/backoff around
// external, possibly-flaky calls. A nil policy disables retrying and
// returns sink unwrapped.
func WithRetry(s EventSink, policy backoff.BackOff) EventSink {
	if policy == nil {
		return s
	}
	return &retryingSink{s: s, policy: policy}
}

type retryingSink struct {
	s      EventSink
	policy backoff.BackOff
}

func (r *retryingSink) AddProcess(ctx context.Context, parent *Identifier, wd string) (Identifier, error) {
	var id Identifier
	err := backoff.Retry(func() error {
		var err error
		id, err = r.s.AddProcess(ctx, parent, wd)
		return err
	}, r.policy)
	return id, err
}

func (r *retryingSink) AddFileOpen(ctx context.Context, id Identifier, path string, mode uint32, isDir bool) error {
	return backoff.Retry(func() error {
		return r.s.AddFileOpen(ctx, id, path, mode, isDir)
	}, r.policy)
}

func (r *retryingSink) AddExec(ctx context.Context, id Identifier, binary string, argv, envp []string, wd string) error {
	return backoff.Retry(func() error {
		return r.s.AddExec(ctx, id, binary, argv, envp, wd)
	}, r.policy)
}

func (r *retryingSink) AddExit(ctx context.Context, id Identifier, exitCode int) error {
	return backoff.Retry(func() error {
		return r.s.AddExit(ctx, id, exitCode)
	}, r.policy)
}
