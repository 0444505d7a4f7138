package principal

import "errors"

// Role is the role assigned to an authenticated principal by the identity service.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProducer Role = "producer"
	RoleAdmin    Role = "admin"
)

var ErrInvalidRole = errors.New("invalid role")

func ParseRole(s string) (Role, error) {
	switch s {
	case RoleCustomer.String(), RoleProducer.String(), RoleAdmin.String():
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated caller of a domain operation. It is extracted
// from the request by the transport layer and passed explicitly; domain code
// never reads ambient session state.
type Principal struct {
	UserID int64
	Role   Role
}

// IsStaff reports whether the principal may perform staff operations
// (status transitions, delivery updates, cancellation of in-flight orders).
func (p Principal) IsStaff() bool {
	return p.Role == RoleProducer || p.Role == RoleAdmin
}
