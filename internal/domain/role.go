package domain

// Role is the effective moderation tier of an identity inside one room.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
	RoleMasterAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMasterAdmin:
		return "master_admin"
	case RoleAdmin:
		return "admin"
	default:
		return "member"
	}
}

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// EffectiveRole derives the role from the two stored sets. Master admins rank above
// admins whether or not they are also listed in admins.
func EffectiveRole(room *Room, identity string) Role {
	switch {
	case room.IsMasterAdmin(identity):
		return RoleMasterAdmin
	case room.IsAdmin(identity):
		return RoleAdmin
	default:
		return RoleMember
	}
}
