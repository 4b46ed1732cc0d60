package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/parish/internal/auth/domain"
	"github.com/aussiebroadwan/parish/internal/auth/events"
	"github.com/aussiebroadwan/parish/internal/auth/store"
)

// auditedEvents get an audit log line each.
var auditedEvents = []string{
	domain.EventUserRegistered,
	domain.EventUserActivated,
	domain.EventUserDeactivated,
	domain.EventUserRoleAssigned,
	domain.EventUserRoleRemoved,
	domain.EventUserTwoFactorEnabled,
	domain.EventUserTwoFactorDisabled,
	domain.EventUserPasswordChanged,
	domain.EventUserEmailChanged,
	domain.EventUserLastLoginUpdated,
	domain.EventRoleCreated,
	domain.EventRolePermissionAdded,
	domain.EventRolePermissionRemoved,
	domain.EventRoleDefaultChanged,
}

// EventService subscribes the application's side effects to domain events.
type EventService struct {
	Store  store.Store
	Logger *slog.Logger
}

// Handlers builds the registry passed to events.NewBus at startup.
func (s *EventService) Handlers() events.Registry {
	reg := events.Registry{}
	for _, name := range auditedEvents {
		reg.On(name, s.audit)
	}
	reg.On(domain.EventUserPasswordChanged, s.revokeSessions)
	return reg
}

func (s *EventService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *EventService) audit(ctx context.Context, ev domain.Event) error {
	attrs := []any{
		slog.String("event", ev.Name),
		slog.String("aggregate_id", ev.AggregateID.String()),
		slog.Time("occurred_at", ev.OccurredAt),
	}
	for k, v := range ev.Attrs {
		attrs = append(attrs, slog.String(k, v))
	}
	s.logger().InfoContext(ctx, "audit", attrs...)
	return nil
}

// revokeSessions ends every session once a password changes.
func (s *EventService) revokeSessions(ctx context.Context, ev domain.Event) error {
	if err := s.Store.RefreshTokens().DeleteByUserID(ctx, ev.AggregateID); err != nil {
		return fmt.Errorf("revoke sessions after password change: %w", err)
	}
	return nil
}
