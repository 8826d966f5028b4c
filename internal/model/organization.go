package model

import "time"

// Role classifies how a tracked organization relates to the user.
type Role string

const (
	RoleMine       Role = "mine"
	RoleCompetitor Role = "competitor"
	RoleTracked    Role = "tracked"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleMine, RoleCompetitor, RoleTracked:
		return true
	}
	return false
}

// Organization is a tracked business whose reviews are ingested.
type Organization struct {
	OrgID       string    `json:"org_id"`
	Name        string    `json:"name,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	ReviewCount int       `json:"review_count,omitempty"`
	Address     string    `json:"address,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Role        Role      `json:"role"`
	ServiceType string    `json:"service_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrganizationUpdate carries fields for a non-destructive upsert: nil
// pointers preserve the stored value, non-nil pointers overwrite it.
type OrganizationUpdate struct {
	OrgID       string
	Name        *string
	Rating      *float64
	ReviewCount *int
	Address     *string
	Categories  []string
	Role        Role
	ServiceType *string
}

// OrgInfo is the organization metadata block returned by the page-fetch
// collaborator.
type OrgInfo struct {
	Name        string   `json:"name"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Address     string   `json:"address"`
	Categories  []string `json:"categories"`
}

// Relation links an organization to one of its competitors.
type Relation struct {
	OrgID        string `json:"org_id"`
	CompetitorID string `json:"competitor_id"`
	Priority     int    `json:"priority,omitempty"`
	Notes        string `json:"notes,omitempty"`
}
