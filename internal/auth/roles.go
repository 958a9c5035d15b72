package auth

import (
	"github.com/spec-kit/messaging-service/internal/domain"
)

// Decision is the outcome of a permission check. The zero value denies.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// grants lists the requirements each role satisfies.
var grants = map[domain.Role][]domain.Role{
	domain.RoleAdmin: {domain.RoleAdmin, domain.RoleUser},
	domain.RoleUser:  {domain.RoleUser},
}

// CheckPermission decides whether identity satisfies required. Unknown roles,
// on either side, are denied.
func CheckPermission(identity domain.Identity, required domain.Role) Decision {
	if !required.Valid() {
		return Denied
	}
	for _, granted := range grants[identity.Role] {
		if granted == required {
			return Allowed
		}
	}
	return Denied
}
