package domain

// Roles known to the core. Role management lives in the auth service.
const (
	RoleTraveler = "traveler"
	RoleGuide    = "guide"
	RoleAdmin    = "admin"
)

// Principal is the authenticated caller handed over by the auth collaborator
type Principal struct {
	UserID string
	Role   string
}
