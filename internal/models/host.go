package models

// Role represents the role carried in a host token.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleHost  Role = "host"
)

// Host is the branding subset of a host account shown on displays.
type Host struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	BrandingLogoURL string `json:"branding_logo_url,omitempty"`
}

// HostFromRow decodes a hosts row.
func HostFromRow(m map[string]any) Host {
	return Host{
		ID:              fieldString(m, "id"),
		Email:           fieldString(m, "email"),
		BrandingLogoURL: fieldString(m, "branding_logo_url"),
	}
}
