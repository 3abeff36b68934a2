package domain

// Role is a coarse grant issued by the identity provider.
type Role string

const (
	// RoleStaff is a privileged operator.
	RoleStaff Role = "staff"
	// RoleReviewer is an editorial board member with review authority.
	RoleReviewer Role = "reviewer"
)

// Principal is the acting user of a request.
type Principal struct {
	UserID uint64
	Roles  []Role
}

func (p Principal) Has(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
