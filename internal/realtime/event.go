package realtime

import "github.com/google/uuid"

// Resource identifies a cached projection family. Topics are typed
// tuples, not ad hoc strings, so two features can never collide on a
// channel name.
type Resource string

const (
	ResourceMembership Resource = "membership"
	ResourceAttendance Resource = "attendance"
	ResourceLedger     Resource = "ledger"
)

var tableResources = map[string]Resource{
	"memberships":    ResourceMembership,
	"attendance":     ResourceAttendance,
	"ledger_entries": ResourceLedger,
}

type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Topic scopes a cache entry and its change notifications: one resource
// type for one entity (player) id.
type Topic struct {
	Resource Resource
	ScopeID  uuid.UUID
}

func (t Topic) key() string {
	return string(t.Resource) + ":" + t.ScopeID.String()
}

// resourceDeps lists projections derived from each resource, under the
// same scope id. The membership snapshot is a function of the ledger and
// the attendance rows, so a change to either must invalidate it too.
var resourceDeps = map[Resource][]Resource{
	ResourceLedger:     {ResourceMembership},
	ResourceAttendance: {ResourceMembership},
}

// ChangeEvent is one row-level change pushed by the store.
type ChangeEvent struct {
	Resource  Resource
	Operation Operation
	ScopeID   uuid.UUID
}

// Topic returns the topic the event belongs to.
func (e ChangeEvent) Topic() Topic {
	return Topic{Resource: e.Resource, ScopeID: e.ScopeID}
}

// affectedTopics returns the event's own topic plus every projection
// derived from it.
func (e ChangeEvent) affectedTopics() []Topic {
	topics := []Topic{e.Topic()}
	for _, dep := range resourceDeps[e.Resource] {
		topics = append(topics, Topic{Resource: dep, ScopeID: e.ScopeID})
	}
	return topics
}
