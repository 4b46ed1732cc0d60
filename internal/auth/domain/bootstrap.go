package domain

// BootstrapData takes an empty deployment to one with roles and a first
// administrator.
type BootstrapData struct {
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string
	Roles          []RoleDefinition
}

// RoleDefinition declares a role to seed. The first administrator receives
// every role marked Admin.
type RoleDefinition struct {
	Name        string
	Description string
	Admin       bool
	Default     bool
	Permissions []string
}
