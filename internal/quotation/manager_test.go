package quotation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	pkgerrors "github.com/traverseglobe/quotation-backend/pkg/errors"
)

func newTestManager(t *testing.T) (*Manager, *recordingStorage, *manualScheduler) {
	t.Helper()
	m, storage, sched, _ := newClockedManager(t, time.Hour)
	return m, storage, sched
}

func newClockedManager(t *testing.T, idle time.Duration) (*Manager, *recordingStorage, *manualScheduler, *fakeClock) {
	t.Helper()
	storage := newRecordingStorage()
	sched := &manualScheduler{}
	clock := &fakeClock{now: time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)}
	m, err := NewManager(Params{
		Storage:   storage,
		Scheduler: sched,
		Clock:     clock,
		Config:    Config{StorageKey: "quotationFormState", IdleTimeout: idle},
	})
	require.NoError(t, err)
	return m, storage, sched, clock
}

func TestNewManagerRequiresStorage(t *testing.T) {
	_, err := NewManager(Params{})
	require.Error(t, err)
}

func TestManagerCreateAndGet(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	id, c, err := m.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Equal(t, "quotationFormState:"+id, c.StorageKey())

	again, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Same(t, c, again)
	require.Equal(t, 1, m.Len())

	_, err = m.Get(ctx, "not-a-uuid")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestManagerSessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, a, err := m.Create(ctx)
	require.NoError(t, err)
	_, b, err := m.Create(ctx)
	require.NoError(t, err)

	a.ToggleGST(true)
	require.True(t, a.Snapshot().IncludeGST)
	require.False(t, b.Snapshot().IncludeGST)
}

func TestManagerDeleteClearsPersistedCopy(t *testing.T) {
	ctx := context.Background()
	m, storage, sched := newTestManager(t)

	id, c, err := m.Create(ctx)
	require.NoError(t, err)
	c.ToggleGST(true)
	sched.Advance(30 * time.Second)

	data, err := storage.Load(ctx, m.SessionKey(id))
	require.NoError(t, err)
	require.NotNil(t, data)

	require.NoError(t, m.Delete(ctx, id))
	require.Equal(t, 0, m.Len())
	data, err = storage.Load(ctx, m.SessionKey(id))
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestManagerCloseFlushesPending(t *testing.T) {
	ctx := context.Background()
	m, storage, sched := newTestManager(t)

	id, c, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.UpdateBasicDetails(BasicDetails{GuestName: ptr("Flushed")}))

	require.NoError(t, m.Close(ctx))
	require.Equal(t, 1, storage.saveCount())
	require.Equal(t, 0, m.Len())

	sched.Advance(time.Minute)
	require.Equal(t, 1, storage.saveCount())

	restored, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Flushed", restored.Snapshot().GuestName)
}

func TestManagerCloseCombinesErrors(t *testing.T) {
	ctx := context.Background()
	m, storage, _ := newTestManager(t)

	for i := 0; i < 2; i++ {
		_, c, err := m.Create(ctx)
		require.NoError(t, err)
		c.ToggleGST(true)
	}
	storage.setFailing(true)

	err := m.Close(ctx)
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
}

func TestManagerGetUnknownSessionIsNotFound(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	for i := 0; i < 100; i++ {
		_, err := m.Get(ctx, uuid.NewString())
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	}
	require.Equal(t, 0, m.Len())
}

func TestManagerGetReopensPersistedSession(t *testing.T) {
	ctx := context.Background()
	m, storage, _ := newTestManager(t)

	id := uuid.NewString()
	doc := Default()
	doc.GuestName = "Persisted"
	data, err := encodeDocument(doc, false)
	require.NoError(t, err)
	require.NoError(t, storage.Save(ctx, m.SessionKey(id), data))

	c, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Persisted", c.Snapshot().GuestName)
	require.Equal(t, 1, m.Len())
}

func TestManagerEvictIdleFlushesAndCloses(t *testing.T) {
	ctx := context.Background()
	m, storage, sched, clock := newClockedManager(t, 2*time.Hour)

	idleID, idle, err := m.Create(ctx)
	require.NoError(t, err)
	activeID, _, err := m.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, idle.UpdateBasicDetails(BasicDetails{GuestName: ptr("Idle")}))

	clock.now = clock.now.Add(time.Hour)
	_, err = m.Get(ctx, activeID)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	evicted, err := m.EvictIdle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)
	require.Equal(t, 1, m.Len())
	require.Equal(t, 1, storage.saveCount())

	// The closed container no longer autosaves.
	sched.Advance(time.Minute)
	require.Equal(t, 1, storage.saveCount())

	reopened, err := m.Get(ctx, idleID)
	require.NoError(t, err)
	require.NotSame(t, idle, reopened)
	require.Equal(t, "Idle", reopened.Snapshot().GuestName)
}

func TestManagerStartEvictionSweepsUntilClose(t *testing.T) {
	ctx := context.Background()
	m, _, sched, clock := newClockedManager(t, 10*time.Minute)
	m.StartEviction(time.Minute)

	_, _, err := m.Create(ctx)
	require.NoError(t, err)

	clock.now = clock.now.Add(11 * time.Minute)
	sched.Advance(time.Minute)
	require.Equal(t, 0, m.Len())
	require.Equal(t, 1, sched.Live())

	require.NoError(t, m.Close(ctx))
	require.Equal(t, 0, sched.Live())
}

func TestManagerInsertKeepsFirstContainer(t *testing.T) {
	m, _, sched := newTestManager(t)

	id := uuid.NewString()
	first, err := newContainer(m.paramsFor(id))
	require.NoError(t, err)
	second, err := newContainer(m.paramsFor(id))
	require.NoError(t, err)

	require.Same(t, first, m.insert(id, first))
	require.Same(t, first, m.insert(id, second))
	require.Equal(t, 1, m.Len())

	// The discarded container is closed and never schedules autosaves.
	second.ToggleGST(true)
	require.Equal(t, 0, sched.Live())
}

// gatedStorage blocks every Load until released.
type gatedStorage struct {
	*MemoryStorage
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStorage) Load(ctx context.Context, key string) ([]byte, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.MemoryStorage.Load(ctx, key)
}

func TestManagerLoadDoesNotBlockLiveSessions(t *testing.T) {
	ctx := context.Background()
	storage := &gatedStorage{
		MemoryStorage: NewMemoryStorage(),
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
	m, err := NewManager(Params{Storage: storage, Scheduler: &manualScheduler{}})
	require.NoError(t, err)

	liveID, live, err := m.Create(ctx)
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, uuid.NewString())
		slowDone <- err
	}()
	<-storage.entered

	got := make(chan *Container, 1)
	go func() {
		c, _ := m.Get(ctx, liveID)
		got <- c
	}()
	select {
	case c := <-got:
		require.Same(t, live, c)
	case <-time.After(time.Second):
		t.Fatal("live session lookup blocked behind a storage load")
	}

	close(storage.release)
	require.True(t, pkgerrors.IsCode(<-slowDone, pkgerrors.CodeNotFound))
}
