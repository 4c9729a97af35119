package domain

import (
	"strings"
	"time"
)

// Startup is the subset of a startup record the matching and recruitment
// core needs. TeamVector is derived lazily from TeamText.
type Startup struct {
	ID         string    `json:"id"          db:"id"`
	OwnerID    string    `json:"owner_id"    db:"user_id"`
	Idea       string    `json:"idea"        db:"idea"`
	TeamText   string    `json:"team"        db:"team"`
	TeamVector []float32 `json:"-"           db:"team_embedding"`
	CategoryID string    `json:"category_id" db:"category_id"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}

// NeedsTeamVector reports whether the team vector should be computed.
func (s *Startup) NeedsTeamVector() bool {
	return strings.TrimSpace(s.TeamText) != "" && len(s.TeamVector) == 0
}

// Category groups startups by industry.
type Category struct {
	ID          string `json:"id"          db:"id"`
	Name        string `json:"name"        db:"name"`
	Description string `json:"description" db:"description"`
}

// EmbeddingText is the text used to embed a category: the name, followed by
// the description when there is one.
func (c *Category) EmbeddingText() string {
	text := c.Name
	if strings.TrimSpace(c.Description) != "" {
		text += " " + c.Description
	}
	return text
}
