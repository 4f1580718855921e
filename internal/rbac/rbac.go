// Package rbac maps operator roles to what they may do in the admin surface.
package rbac

import "fmt"

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	// ActionRead covers the admin session view and the activity feed.
	ActionRead Action = "read"
	// ActionEdit covers section edits, gallery changes and explicit saves.
	ActionEdit   Action = "edit"
	ActionUpload Action = "upload"
	// ActionPublish covers site-wide switches: maintenance mode and reloading
	// the stored document over in-memory edits.
	ActionPublish Action = "publish"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionEdit || action == ActionUpload
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps unknown roles to viewer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}

// Parse is the strict form used when assigning roles.
func Parse(role string) (Role, error) {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return Role(role), nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}
