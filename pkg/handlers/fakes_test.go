package handlers

import (
	"context"
	"encoding/binary"

	"github.com/google/reprotrace/pkg/memory"
	"github.com/google/reprotrace/pkg/process"
	"github.com/google/reprotrace/pkg/sink"
	"github.com/google/reprotrace/pkg/tracelog"
)

// fakeMemory is a minimal memory.Reader backed by two maps: one for
// NUL-terminated strings, one for raw little-endian words (used for
// argv/envp pointer arrays and open(2) flags read indirectly through
// ReadWord in tests that need it). Addresses are arbitrary test-chosen
// integers, not real tracee pointers.
type fakeMemory struct {
	strings map[uint64]string
	words   map[uint64]uint64
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{strings: map[uint64]string{}, words: map[uint64]uint64{}}
}

func (f *fakeMemory) putString(addr uint64, s string) { f.strings[addr] = s }
func (f *fakeMemory) putWord(addr uint64, v uint64)   { f.words[addr] = v }

// putStrArray lays out a NUL-terminated pointer array starting at arrayAddr,
// with each string placed at a synthesised address derived from addrBase.
func (f *fakeMemory) putStrArray(arrayAddr, addrBase uint64, strs []string) {
	for i, s := range strs {
		strAddr := addrBase + uint64(i)*0x100
		f.putWord(arrayAddr+uint64(i)*8, strAddr)
		f.putString(strAddr, s)
	}
	f.putWord(arrayAddr+uint64(len(strs))*8, 0)
}

func (f *fakeMemory) ReadBytes(tid int, addr uint64, buf []byte) error {
	w, ok := f.words[addr]
	if !ok {
		return memory.ErrTraceeGone
	}
	tmp := make([]byte, 8)
	binary.LittleEndian.PutUint64(tmp, w)
	copy(buf, tmp[:len(buf)])
	return nil
}

func (f *fakeMemory) ReadCString(tid int, addr uint64) (string, error) {
	s, ok := f.strings[addr]
	if !ok {
		return "", memory.ErrTraceeGone
	}
	return s, nil
}

var _ memory.Reader = (*fakeMemory)(nil)

// fakeSink records every call so tests can assert on exactly what was
// emitted, in order.
type fakeSink struct {
	nextID     uint64
	processes  []procCall
	fileOpens  []fileOpenCall
	execs      []execCall
	exits      []exitCall
	scraped    []scrapeCall
}

type procCall struct {
	parent *sink.Identifier
	wd     string
}
type fileOpenCall struct {
	id    sink.Identifier
	path  string
	mode  uint32
	isDir bool
}
type execCall struct {
	id             sink.Identifier
	binary         string
	argv, envp     []string
	wd             string
}
type exitCall struct {
	id   sink.Identifier
	code int
}
type scrapeCall struct {
	id         sink.Identifier
	tid        int
	binaryHint string
}

func newFakeSink() *fakeSink { return &fakeSink{} }

func (f *fakeSink) AddProcess(ctx context.Context, parent *sink.Identifier, wd string) (sink.Identifier, error) {
	f.nextID++
	id := sink.Identifier(f.nextID)
	var p *sink.Identifier
	if parent != nil {
		cp := *parent
		p = &cp
	}
	f.processes = append(f.processes, procCall{parent: p, wd: wd})
	return id, nil
}

func (f *fakeSink) AddFileOpen(ctx context.Context, id sink.Identifier, path string, mode uint32, isDir bool) error {
	f.fileOpens = append(f.fileOpens, fileOpenCall{id, path, mode, isDir})
	return nil
}

func (f *fakeSink) AddExec(ctx context.Context, id sink.Identifier, binary string, argv, envp []string, wd string) error {
	f.execs = append(f.execs, execCall{id, binary, argv, envp, wd})
	return nil
}

func (f *fakeSink) AddExit(ctx context.Context, id sink.Identifier, exitCode int) error {
	f.exits = append(f.exits, exitCall{id, exitCode})
	return nil
}

func (f *fakeSink) AddFilesFromProc(ctx context.Context, id sink.Identifier, tid int, binaryHint string) error {
	f.scraped = append(f.scraped, scrapeCall{id, tid, binaryHint})
	return nil
}

var (
	_ sink.EventSink   = (*fakeSink)(nil)
	_ sink.ProcScraper = (*fakeSink)(nil)
)

func testLogger() *tracelog.Logger { return tracelog.New(tracelog.Silent) }

func newTestHandlers(mem memory.Reader, reg *process.Registry, fs *fakeSink) *Handlers {
	return New(mem, reg, fs, fs, testLogger(), 0)
}
