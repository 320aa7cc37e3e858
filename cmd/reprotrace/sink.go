package main

import (
	"context"
	"sync/atomic"

	"github.com/google/reprotrace/pkg/sink"
	"github.com/google/reprotrace/pkg/tracelog"
)

// logSink is the demonstration Event Sink: it assigns monotonically
// increasing identifiers and narrates every call through the tracer's own
// logger instead of persisting to a database. The real Event Sink named in
// SPEC_FULL.md section 6 is an external collaborator this binary does not
// implement; logSink only exists so traceCommand has something concrete to
// wire pkg/dispatch against.
type logSink struct {
	log  *tracelog.Logger
	next uint64
}

func newLogSink(log *tracelog.Logger) *logSink {
	return &logSink{log: log}
}

var _ sink.EventSink = (*logSink)(nil)
var _ sink.ProcScraper = (*logSink)(nil)

func (s *logSink) AddProcess(ctx context.Context, parent *sink.Identifier, wd string) (sink.Identifier, error) {
	id := sink.Identifier(atomic.AddUint64(&s.next, 1))
	if parent != nil {
		s.log.Infof(0, "add_process id=%d parent=%d wd=%s", id, *parent, wd)
	} else {
		s.log.Infof(0, "add_process id=%d (root) wd=%s", id, wd)
	}
	return id, nil
}

func (s *logSink) AddFileOpen(ctx context.Context, id sink.Identifier, path string, mode uint32, isDir bool) error {
	s.log.Infof(0, "add_file_open id=%d path=%s mode=%#x dir=%v", id, path, mode, isDir)
	return nil
}

func (s *logSink) AddExec(ctx context.Context, id sink.Identifier, binary string, argv, envp []string, wd string) error {
	s.log.Infof(0, "add_exec id=%d binary=%s argv=%v wd=%s (%d env vars)", id, binary, argv, wd, len(envp))
	return nil
}

func (s *logSink) AddExit(ctx context.Context, id sink.Identifier, exitCode int) error {
	s.log.Infof(0, "add_exit id=%d code=%d", id, exitCode)
	return nil
}

func (s *logSink) AddFilesFromProc(ctx context.Context, id sink.Identifier, tid int, binaryHint string) error {
	s.log.Infof(0, "add_files_from_proc id=%d tid=%d hint=%s (scraper not implemented in this binary)", id, tid, binaryHint)
	return nil
}
