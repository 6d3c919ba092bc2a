package rbac

import "fmt"

type Role string
type Action string

const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

// Roles lists every role in descending privilege order.
var Roles = []Role{RoleAdmin, RoleEditor, RoleViewer}

// Can has no default branch: an unlisted role is denied explicitly at the
// bottom, and adding a Role constant means adding a case here.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite
	case RoleViewer:
		return action == ActionRead
	}
	return false
}

func Parse(role string) (Role, error) {
	switch Role(role) {
	case RoleAdmin, RoleEditor, RoleViewer:
		return Role(role), nil
	}
	return "", fmt.Errorf("unknown role %q", role)
}

func (r Role) Valid() bool {
	_, err := Parse(string(r))
	return err == nil
}
