package domain

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/parish/pkg/idx"
)

// Permission allows one action on one resource. Only the description may
// change after creation.
type Permission struct {
	ID             idx.ID
	ResourceAction ResourceAction
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewPermission(id idx.ID, ra ResourceAction, description string, now time.Time) *Permission {
	return &Permission{
		ID:             id,
		ResourceAction: ra,
		Description:    strings.TrimSpace(description),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Name is the derived "resource:action" string.
func (p *Permission) Name() string { return p.ResourceAction.String() }

func (p *Permission) UpdateDescription(description string, now time.Time) {
	p.Description = strings.TrimSpace(description)
	p.UpdatedAt = now
}
