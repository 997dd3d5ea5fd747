package access

import (
	"context"
	"sync"
	"sync/atomic"
)

type countingChecker struct {
	calls  atomic.Int32
	answer func(CheckRequest) (bool, error)
}

func (c *countingChecker) Check(_ context.Context, req CheckRequest) (bool, error) {
	c.calls.Add(1)
	if c.answer == nil {
		return true, nil
	}
	return c.answer(req)
}

type recordingSink struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (s *recordingSink) Record(_ context.Context, entry AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) all() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEntry(nil), s.entries...)
}

type panickingSink struct{}

func (panickingSink) Record(context.Context, AuditEntry) { panic("sink down") }

func newTestEngine(checker Checker, sink AuditSink) *Engine {
	return NewEngine(EngineConfig{
		Verifier: NewVerifier(checker, VerifierConfig{}),
		Sink:     sink,
	})
}
