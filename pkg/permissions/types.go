package permissions

// PermissionRow is one persisted cell of a role's matrix, keyed by
// (role_id, code).
type PermissionRow struct {
	RoleID   int64  `json:"role_id"`
	Code     string `json:"code"`
	Access   bool   `json:"access"`
	Disabled bool   `json:"disabled"`
}

// Patch is a partial update to one row. Nil fields are left untouched; a
// patch with both fields nil is a no-op and is never emitted by the
// normalizer.
type Patch struct {
	Code     string `json:"code"`
	Access   *bool  `json:"access,omitempty"`
	Disabled *bool  `json:"disabled,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Access == nil && p.Disabled == nil
}

func boolPtr(b bool) *bool { return &b }
