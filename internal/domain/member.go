package domain

import "strings"

// Member represents a lab member listed in the roster
type Member struct {
	Username         string   `json:"username"`
	Name             string   `json:"name"`
	Role             string   `json:"role"`
	ProfileURL       string   `json:"profile_url"`
	PublicationsPath string   `json:"publications_path"`
	Active           bool     `json:"active"`
	KnownDirs        []string `json:"known_dirs,omitempty"`
}

// SiteRepo returns the name of the member's GitHub Pages repository
func (m *Member) SiteRepo() string {
	return m.Username + ".github.io"
}

// PubPath returns the publications path without surrounding slashes
func (m *Member) PubPath() string {
	p := strings.Trim(m.PublicationsPath, "/")
	if p == "" {
		return "publications"
	}
	return p
}
