package domain

// Role enumerates the access levels attached to a verified principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the verified identity attached to a request by the upstream
// authentication gateway. This service trusts the gateway's verification and
// only consumes the result.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

// CanAccessUser reports whether the principal may act on resources owned by
// the given user id. Admins may act on any user's resources.
func (p Principal) CanAccessUser(userID string) bool {
	return p.Role == RoleAdmin || p.ID == userID
}
