package quotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// manualScheduler fires tasks only when Advance moves its virtual time past
// their deadline.
type manualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	s       *manualScheduler
	at      time.Duration
	fn      func()
	fired   bool
	stopped bool
}

func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{s: s, at: s.now + d, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *manualTask
		for _, t := range s.tasks {
			if t.fired || t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		s.now = next.at
		s.mu.Unlock()
		next.fn()
	}
}

func (s *manualScheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := 0
	for _, t := range s.tasks {
		if !t.fired && !t.stopped {
			live++
		}
	}
	return live
}

// recordingStorage wraps MemoryStorage, counting writes and optionally failing.
type recordingStorage struct {
	*MemoryStorage
	mu      sync.Mutex
	saves   int
	deletes int
	failing bool
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{MemoryStorage: NewMemoryStorage()}
}

func (s *recordingStorage) Save(ctx context.Context, key string, document []byte) error {
	s.mu.Lock()
	failing := s.failing
	s.saves++
	s.mu.Unlock()
	if failing {
		return errors.New("quota exceeded")
	}
	return s.MemoryStorage.Save(ctx, key, document)
}

func (s *recordingStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.MemoryStorage.Delete(ctx, key)
}

func (s *recordingStorage) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func (s *recordingStorage) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type harness struct {
	c       *Container
	storage *recordingStorage
	sched   *manualScheduler
	clock   *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStorage(t, newRecordingStorage())
}

func newHarnessWithStorage(t *testing.T, storage *recordingStorage) *harness {
	t.Helper()
	h := &harness{
		storage: storage,
		sched:   &manualScheduler{},
		clock:   &fakeClock{now: time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)},
	}
	c, err := New(context.Background(), Params{
		Storage:   storage,
		Scheduler: h.sched,
		Clock:     h.clock,
		Config:    Config{StorageKey: "test-quotation"},
	})
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func (h *harness) persisted(t *testing.T) *Quotation {
	t.Helper()
	data, err := h.storage.Load(context.Background(), "test-quotation")
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if data == nil {
		return nil
	}
	q, err := decodeDocument(data)
	if err != nil {
		t.Fatalf("decode persisted: %v", err)
	}
	return &q
}

func ptr[T any](v T) *T { return &v }
