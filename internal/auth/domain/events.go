package domain

import (
	"time"

	"github.com/aussiebroadwan/parish/pkg/idx"
)

// Event names.
const (
	EventUserRegistered        = "user.registered"
	EventUserActivated         = "user.activated"
	EventUserDeactivated       = "user.deactivated"
	EventUserRoleAssigned      = "user.role_assigned"
	EventUserRoleRemoved       = "user.role_removed"
	EventUserTwoFactorEnabled  = "user.two_factor_enabled"
	EventUserTwoFactorDisabled = "user.two_factor_disabled"
	EventUserPasswordChanged   = "user.password_changed"
	EventUserEmailChanged      = "user.email_changed"
	EventUserLastLoginUpdated  = "user.last_login_updated"
	EventRoleCreated           = "role.created"
	EventRolePermissionAdded   = "role.permission_added"
	EventRolePermissionRemoved = "role.permission_removed"
	EventRoleDefaultChanged    = "role.default_changed"
)

// Event records something that happened to an aggregate.
type Event struct {
	Name        string
	AggregateID idx.ID
	OccurredAt  time.Time
	Attrs       map[string]string
}

// eventBuffer is embedded in aggregates. Only the aggregate's own methods
// record; the bus drains through the promoted DrainEvents.
type eventBuffer struct {
	pending []Event
}

func (b *eventBuffer) record(name string, id idx.ID, at time.Time, kv ...string) {
	var attrs map[string]string
	if len(kv) > 0 {
		attrs = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			attrs[kv[i]] = kv[i+1]
		}
	}
	b.pending = append(b.pending, Event{Name: name, AggregateID: id, OccurredAt: at, Attrs: attrs})
}

// DrainEvents returns buffered events in emission order and clears the buffer.
func (b *eventBuffer) DrainEvents() []Event {
	out := b.pending
	b.pending = nil
	return out
}

// PendingEvents returns the number of buffered events.
func (b *eventBuffer) PendingEvents() int {
	return len(b.pending)
}
