package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStream struct {
	events chan ChangeEvent
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan ChangeEvent, 16)}
}

func (s *fakeStream) Events() <-chan ChangeEvent { return s.events }

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type syncFixture struct {
	stream  *fakeStream
	cache   *Cache
	sync    *Synchronizer
	values  map[uuid.UUID]*atomic.Value
	fetches atomic.Int32
}

func newSyncFixture(t *testing.T, scopeIDs ...uuid.UUID) *syncFixture {
	t.Helper()
	f := &syncFixture{
		stream: newFakeStream(),
		cache:  NewCache(time.Minute),
		values: make(map[uuid.UUID]*atomic.Value),
	}
	for _, id := range scopeIDs {
		value := &atomic.Value{}
		value.Store("v1")
		f.values[id] = value
	}

	fetchers := map[Resource]ScopeFetch{
		ResourceMembership: func(ctx context.Context, scopeID uuid.UUID) (interface{}, error) {
			f.fetches.Add(1)
			return f.values[scopeID].Load(), nil
		},
	}
	f.sync = NewSynchronizer(f.stream, f.cache, NewRegistry(), fetchers, 5, zap.NewNop())
	go f.sync.Run()
	t.Cleanup(func() { f.sync.Close() })
	return f
}

func TestSynchronizerGetFetchesThenCaches(t *testing.T) {
	scopeID := uuid.New()
	f := newSyncFixture(t, scopeID)
	topic := Topic{Resource: ResourceMembership, ScopeID: scopeID}

	value, err := f.sync.Get(context.Background(), topic)
	require.NoError(t, err)
	require.Equal(t, "v1", value)

	_, err = f.sync.Get(context.Background(), topic)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.fetches.Load(), "second read is a cache hit")
}

func TestSynchronizerGetUnknownResource(t *testing.T) {
	f := newSyncFixture(t)
	_, err := f.sync.Get(context.Background(), Topic{Resource: ResourceLedger, ScopeID: uuid.New()})
	require.Error(t, err)
}

// A change event for a watched scope invalidates the stale entry,
// reaches the subscriber, and the next read observes the new value.
func TestSynchronizerConvergesAfterChange(t *testing.T) {
	scopeID := uuid.New()
	f := newSyncFixture(t, scopeID)
	topic := Topic{Resource: ResourceMembership, ScopeID: scopeID}

	sub := f.sync.Watch(topic)
	defer sub.Cancel()

	value, err := f.sync.Get(context.Background(), topic)
	require.NoError(t, err)
	require.Equal(t, "v1", value)

	f.values[scopeID].Store("v2")
	f.stream.events <- ChangeEvent{Resource: ResourceMembership, Operation: OpUpdate, ScopeID: scopeID}

	select {
	case event := <-sub.C:
		require.Equal(t, scopeID, event.ScopeID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never saw the change event")
	}

	require.Eventually(t, func() bool {
		value, err := f.sync.Get(context.Background(), topic)
		return err == nil && value == "v2"
	}, 2*time.Second, 10*time.Millisecond, "reads after a change must converge on the new value")
}

// A ledger change must refresh the membership snapshot it feeds: the
// watcher hears the event and reads converge on the new value without
// waiting out the TTL.
func TestSynchronizerLedgerChangeRefreshesSnapshot(t *testing.T) {
	scopeID := uuid.New()
	f := newSyncFixture(t, scopeID)
	topic := Topic{Resource: ResourceMembership, ScopeID: scopeID}

	sub := f.sync.Watch(topic)
	defer sub.Cancel()

	value, err := f.sync.Get(context.Background(), topic)
	require.NoError(t, err)
	require.Equal(t, "v1", value)

	f.values[scopeID].Store("v2")
	f.stream.events <- ChangeEvent{Resource: ResourceLedger, Operation: OpInsert, ScopeID: scopeID}

	select {
	case event := <-sub.C:
		require.Equal(t, ResourceLedger, event.Resource)
		require.Equal(t, scopeID, event.ScopeID)
	case <-time.After(2 * time.Second):
		t.Fatal("membership watcher never heard the ledger change")
	}

	require.Eventually(t, func() bool {
		value, err := f.sync.Get(context.Background(), topic)
		return err == nil && value == "v2"
	}, 2*time.Second, 10*time.Millisecond, "snapshot reads must converge after the ledger change")
}

func TestSynchronizerAttendanceChangeInvalidatesSnapshot(t *testing.T) {
	scopeID := uuid.New()
	f := newSyncFixture(t, scopeID)
	topic := Topic{Resource: ResourceMembership, ScopeID: scopeID}

	_, err := f.sync.Get(context.Background(), topic)
	require.NoError(t, err)

	f.stream.events <- ChangeEvent{Resource: ResourceAttendance, Operation: OpUpdate, ScopeID: scopeID}

	require.Eventually(t, func() bool {
		_, ok := f.cache.Get(topic)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "attendance changes must drop the cached snapshot")
}

// Without a watcher the entry is only invalidated; the refetch waits for
// the next read.
func TestSynchronizerNoRefetchWithoutWatchers(t *testing.T) {
	scopeID := uuid.New()
	f := newSyncFixture(t, scopeID)
	topic := Topic{Resource: ResourceMembership, ScopeID: scopeID}

	_, err := f.sync.Get(context.Background(), topic)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.fetches.Load())

	f.stream.events <- ChangeEvent{Resource: ResourceMembership, Operation: OpUpdate, ScopeID: scopeID}

	require.Eventually(t, func() bool {
		_, ok := f.cache.Get(topic)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "entry must be invalidated")
	require.Equal(t, int32(1), f.fetches.Load(), "no eager refetch for an unwatched scope")

	value, err := f.sync.Get(context.Background(), topic)
	require.NoError(t, err)
	require.Equal(t, "v1", value)
	require.Equal(t, int32(2), f.fetches.Load())
}

// Teardown before Run ever started (a failed startup) must return, not
// hang waiting for a loop that never ran.
func TestSynchronizerCloseWithoutRun(t *testing.T) {
	s := NewSynchronizer(newFakeStream(), NewCache(time.Minute), NewRegistry(), nil, 1, zap.NewNop())
	require.NoError(t, s.Close())
}

func TestSynchronizerCloseTearsDown(t *testing.T) {
	scopeID := uuid.New()
	f := newSyncFixture(t, scopeID)
	topic := Topic{Resource: ResourceMembership, ScopeID: scopeID}

	sub := f.sync.Watch(topic)
	require.NoError(t, f.sync.Close())

	_, open := <-sub.C
	require.False(t, open, "close releases every subscription")
}
