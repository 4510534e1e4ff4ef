package models

// Role is the authorization role of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid returns true if r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is a platform account. The backend owns it; the client only caches it.
type User struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Role     Role    `json:"role"`
	SectorID *int64  `json:"sectorId,omitempty"`
	Sector   *Sector `json:"sector,omitempty"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// EffectiveSectorID returns the sector id, falling back to the embedded
// sector when the backend only returned the relation.
func (u *User) EffectiveSectorID() (int64, bool) {
	if u == nil {
		return 0, false
	}
	if u.SectorID != nil {
		return *u.SectorID, true
	}
	if u.Sector != nil {
		return u.Sector.ID, true
	}
	return 0, false
}

// Sector groups users, e.g. "Finance".
type Sector struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Credentials are exchanged for a session at login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// UserInput is the payload for creating or updating a user. Password is
// only required on create.
type UserInput struct {
	Name     string `json:"name,omitempty" validate:"required"`
	Email    string `json:"email,omitempty" validate:"required,email"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
	Role     Role   `json:"role,omitempty" validate:"omitempty,oneof=admin user"`
	SectorID *int64 `json:"sectorId,omitempty" validate:"omitempty,gt=0"`
}

// SectorInput is the payload for creating or renaming a sector.
type SectorInput struct {
	Name string `json:"name" validate:"required"`
}
