package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff"
)

type flakyOnceSink struct {
	failuresLeft int
	addProcessN  int
}

func (f *flakyOnceSink) AddProcess(ctx context.Context, parent *Identifier, wd string) (Identifier, error) {
	f.addProcessN++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return 0, errors.New("transient sink failure")
	}
	return Identifier(42), nil
}

func (f *flakyOnceSink) AddFileOpen(ctx context.Context, id Identifier, path string, mode uint32, isDir bool) error {
	return nil
}
func (f *flakyOnceSink) AddExec(ctx context.Context, id Identifier, binary string, argv, envp []string, wd string) error {
	return nil
}
func (f *flakyOnceSink) AddExit(ctx context.Context, id Identifier, exitCode int) error { return nil }

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	inner := &flakyOnceSink{failuresLeft: 2}
	s := WithRetry(inner, backoff.NewConstantBackOff(0))

	id, err := s.AddProcess(context.Background(), nil, "/")
	if err != nil {
		t.Fatalf("AddProcess: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}
	if inner.addProcessN != 3 {
		t.Errorf("AddProcess called %d times, want 3 (2 failures + 1 success)", inner.addProcessN)
	}
}

func TestWithRetryNilPolicyPassesThrough(t *testing.T) {
	inner := &flakyOnceSink{}
	s := WithRetry(inner, nil)
	if s != EventSink(inner) {
		t.Errorf("WithRetry with nil policy should return the sink unwrapped")
	}
}
