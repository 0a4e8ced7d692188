package models

// PermissionGrant is one row of the closed policy table: a role may
// perform an action on a resource with a given possession scope.
type PermissionGrant struct {
	Role       string `json:"role"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Possession string `json:"possession"` // own, any
}
