package domain

import "time"

// Profile is a registered user as seen by the matching engine: the free-text
// fields a candidate fills in and the embeddings last computed from them.
// A nil vector means it was never computed (or was cleared with its text).
type Profile struct {
	UserID               string    `json:"user_id"                db:"id"`
	Email                string    `json:"email"                  db:"email"`
	FullName             string    `json:"full_name"              db:"full_name"`
	Avatar               string    `json:"avatar,omitempty"       db:"avatar"`
	Bio                  string    `json:"bio,omitempty"          db:"bio"`
	Location             string    `json:"location,omitempty"     db:"location"`
	Role                 string    `json:"role"                   db:"role"`
	SkillsText           string    `json:"skills"                 db:"skills"`
	RolesText            string    `json:"roles_in_startup"       db:"roles_in_startup"`
	CategoryInterestText string    `json:"category_interests"     db:"category_interests"`
	SkillsVector         []float32 `json:"-"                      db:"skills_embedding"`
	RolesVector          []float32 `json:"-"                      db:"roles_embedding"`
	CategoryVector       []float32 `json:"-"                      db:"categories_embedding"`
	CreatedAt            time.Time `json:"created_at"             db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"             db:"updated_at"`
}

// HasAnyVector reports whether at least one embedding is populated.
func (p *Profile) HasAnyVector() bool {
	return len(p.SkillsVector) > 0 || len(p.RolesVector) > 0 || len(p.CategoryVector) > 0
}

// VectorField names one of the embedding columns on a profile.
type VectorField string

// Profile embedding fields.
const (
	VectorFieldSkills     VectorField = "skills"
	VectorFieldRoles      VectorField = "roles"
	VectorFieldCategories VectorField = "categories"
)

// ProfileVectorFields lists every embeddable profile field in a fixed order.
var ProfileVectorFields = []VectorField{VectorFieldSkills, VectorFieldRoles, VectorFieldCategories}

// SourceText returns the text a vector field is derived from.
func (p *Profile) SourceText(f VectorField) string {
	switch f {
	case VectorFieldSkills:
		return p.SkillsText
	case VectorFieldRoles:
		return p.RolesText
	case VectorFieldCategories:
		return p.CategoryInterestText
	}
	return ""
}

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the caller carries the admin role.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// User roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)
