package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

const maxEmailLength = 254

// Email is a normalised (trimmed, lower-case) email address.
type Email struct{ value string }

func NewEmail(raw string) (Email, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return Email{}, InvalidValue("email", "email is required")
	}
	if len(v) > maxEmailLength {
		return Email{}, InvalidValue("email", "email is too long")
	}
	if !emailPattern.MatchString(v) {
		return Email{}, InvalidValue("email", "email is not a valid address")
	}
	return Email{value: v}, nil
}

// MustEmail panics on invalid input. Tests and seed data only.
func MustEmail(raw string) Email {
	e, err := NewEmail(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Email) String() string     { return e.value }
func (e Email) IsZero() bool       { return e.value == "" }
func (e Email) Equal(o Email) bool { return e.value == o.value }

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// Password is a plaintext password that passed the complexity rules. It is
// never persisted; only its hash is.
type Password struct{ value string }

func NewPassword(raw string) (Password, error) {
	n := utf8.RuneCountInString(raw)
	if n < minPasswordLength {
		return Password{}, InvalidValue("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if n > maxPasswordLength {
		return Password{}, InvalidValue("password", fmt.Sprintf("password must be at most %d characters", maxPasswordLength))
	}

	var upper, lower, digit, special bool
	for _, r := range raw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return Password{}, InvalidValue("password",
			"password must contain upper and lower case letters, a digit and a special character")
	}
	return Password{value: raw}, nil
}

// Reveal returns the plaintext for hashing.
func (p Password) Reveal() string        { return p.value }
func (p Password) String() string        { return "********" }
func (p Password) Equal(o Password) bool { return p.value == o.value }

const maxNameLength = 50

// Name is a trimmed person name component.
type Name struct{ value string }

func NewName(field, raw string) (Name, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Name{}, InvalidValue(field, "name is required")
	}
	if utf8.RuneCountInString(v) > maxNameLength {
		return Name{}, InvalidValue(field, fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	return Name{value: v}, nil
}

// MustName panics on invalid input. Tests and seed data only.
func MustName(raw string) Name {
	n, err := NewName("name", raw)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Name) String() string    { return n.value }
func (n Name) IsZero() bool      { return n.value == "" }
func (n Name) Equal(o Name) bool { return n.value == o.value }

// Action is the verb half of a permission.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionWrite  Action = "write"
	ActionManage Action = "manage"
)

func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionWrite, ActionManage:
		return a, nil
	default:
		return "", InvalidValue("action", fmt.Sprintf("unknown action %q", raw))
	}
}

var resourcePattern = regexp.MustCompile(`^[a-z][a-z0-9_\-]{0,49}$`)

// ResourceAction pairs a resource with an action. Its string form
// "resource:action" is the permission name embedded in access tokens.
type ResourceAction struct {
	resource string
	action   Action
}

func NewResourceAction(resource string, action Action) (ResourceAction, error) {
	r := strings.ToLower(strings.TrimSpace(resource))
	if !resourcePattern.MatchString(r) {
		return ResourceAction{}, InvalidValue("resource", fmt.Sprintf("invalid resource %q", resource))
	}
	a, err := ParseAction(string(action))
	if err != nil {
		return ResourceAction{}, err
	}
	return ResourceAction{resource: r, action: a}, nil
}

// ParseResourceAction parses "resource:action".
func ParseResourceAction(name string) (ResourceAction, error) {
	resource, action, ok := strings.Cut(name, ":")
	if !ok {
		return ResourceAction{}, InvalidValue("permission", fmt.Sprintf("%q is not resource:action", name))
	}
	return NewResourceAction(resource, Action(action))
}

func (ra ResourceAction) Resource() string { return ra.resource }
func (ra ResourceAction) Action() Action   { return ra.action }
func (ra ResourceAction) IsZero() bool     { return ra.resource == "" }
func (ra ResourceAction) String() string   { return ra.resource + ":" + string(ra.action) }

func (ra ResourceAction) Equal(o ResourceAction) bool {
	return ra.resource == o.resource && ra.action == o.action
}

// PermissionName is a validated "resource:action" string.
type PermissionName struct{ value string }

func NewPermissionName(raw string) (PermissionName, error) {
	ra, err := ParseResourceAction(raw)
	if err != nil {
		return PermissionName{}, err
	}
	return PermissionName{value: ra.String()}, nil
}

func (p PermissionName) String() string              { return p.value }
func (p PermissionName) Equal(o PermissionName) bool { return p.value == o.value }

// ResourceAction parses the name back into its parts. The value was
// validated on construction so the error is impossible.
func (p PermissionName) ResourceAction() ResourceAction {
	ra, _ := ParseResourceAction(p.value)
	return ra
}
