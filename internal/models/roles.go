package models

// User roles carried by gateway headers and JWT claims
const (
	RoleAdmin = "admin" // may delete any chain
	RoleUser  = "user"
)

// CanDelete reports whether a role may delete chains it does not own
func CanDelete(role string) bool {
	return role == RoleAdmin
}
