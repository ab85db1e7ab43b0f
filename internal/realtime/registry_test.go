package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistrySubscribeDispatch(t *testing.T) {
	registry := NewRegistry()
	topic := membershipTopic()

	sub := registry.Subscribe(topic)
	other := registry.Subscribe(Topic{Resource: ResourceAttendance, ScopeID: uuid.New()})
	defer sub.Cancel()
	defer other.Cancel()

	event := ChangeEvent{Resource: topic.Resource, Operation: OpUpdate, ScopeID: topic.ScopeID}
	registry.Dispatch(event.Topic(), event)

	select {
	case got := <-sub.C:
		require.Equal(t, event, got)
	default:
		t.Fatal("subscriber did not receive its event")
	}

	select {
	case <-other.C:
		t.Fatal("event leaked to an unrelated topic")
	default:
	}
}

// The topic decides who hears an event, not the event's own resource, so
// a ledger change can reach watchers of the derived membership topic.
func TestRegistryDispatchToDerivedTopic(t *testing.T) {
	registry := NewRegistry()
	scopeID := uuid.New()
	topic := Topic{Resource: ResourceMembership, ScopeID: scopeID}
	sub := registry.Subscribe(topic)
	defer sub.Cancel()

	event := ChangeEvent{Resource: ResourceLedger, Operation: OpInsert, ScopeID: scopeID}
	registry.Dispatch(topic, event)

	select {
	case got := <-sub.C:
		require.Equal(t, ResourceLedger, got.Resource)
	default:
		t.Fatal("membership watcher did not hear the ledger change")
	}
}

func TestRegistryCancelReleases(t *testing.T) {
	registry := NewRegistry()
	topic := membershipTopic()

	sub := registry.Subscribe(topic)
	require.True(t, registry.HasSubscribers(topic))
	require.Equal(t, 1, registry.Count())

	sub.Cancel()
	require.False(t, registry.HasSubscribers(topic))
	require.Zero(t, registry.Count(), "cancelled subscriptions must not linger")

	_, open := <-sub.C
	require.False(t, open, "cancel closes the channel")

	sub.Cancel() // second cancel is a no-op
}

// A subscriber that stops draining loses events instead of stalling the
// dispatch loop.
func TestRegistryDispatchNeverBlocks(t *testing.T) {
	registry := NewRegistry()
	topic := membershipTopic()
	sub := registry.Subscribe(topic)
	defer sub.Cancel()

	event := ChangeEvent{Resource: topic.Resource, Operation: OpInsert, ScopeID: topic.ScopeID}
	for i := 0; i < cap(sub.C)+5; i++ {
		registry.Dispatch(event.Topic(), event)
	}

	require.Len(t, sub.C, cap(sub.C), "overflow is dropped, not queued")
}

func TestRegistryClose(t *testing.T) {
	registry := NewRegistry()
	first := registry.Subscribe(membershipTopic())
	second := registry.Subscribe(membershipTopic())

	registry.Close()

	for _, sub := range []*Subscription{first, second} {
		_, open := <-sub.C
		require.False(t, open)
	}
	require.Zero(t, registry.Count())

	// Subscribing after close hands back a dead channel instead of
	// panicking.
	late := registry.Subscribe(membershipTopic())
	_, open := <-late.C
	require.False(t, open)

	first.Cancel() // cancel after close stays safe
}
