package models

import (
	"fmt"
	"strings"
)

// Role is the variant tag of an Identity.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleUser       Role = "user"
	RoleStaff      Role = "staff"
	RoleCourier    Role = "courier"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleUser, RoleStaff, RoleCourier, RoleSuperAdmin:
		return true
	}
	return false
}

// Identity is who a request acts as. A session holds exactly one of these.
// ID is zero for guests and for the super-admin, whose account lives in config.
type Identity struct {
	Role      Role   `json:"role"`
	ID        uint   `json:"id,omitempty"`
	SessionID string `json:"-"`
}

func Guest(sessionID string) Identity  { return Identity{Role: RoleGuest, SessionID: sessionID} }
func UserIdentity(id uint) Identity    { return Identity{Role: RoleUser, ID: id} }
func StaffIdentity(id uint) Identity   { return Identity{Role: RoleStaff, ID: id} }
func CourierIdentity(id uint) Identity { return Identity{Role: RoleCourier, ID: id} }
func SuperAdminIdentity() Identity     { return Identity{Role: RoleSuperAdmin} }

func (i Identity) IsGuest() bool { return i.Role == RoleGuest || i.Role == "" }

// IsTeam reports whether the identity belongs to the business side.
func (i Identity) IsTeam() bool {
	return i.Role == RoleStaff || i.Role == RoleCourier || i.Role == RoleSuperAdmin
}

// Party maps the identity onto the recipient/member type it is addressed by.
func (i Identity) Party() PartyType {
	switch i.Role {
	case RoleUser:
		return PartyUsers
	case RoleStaff:
		return PartyStaff
	case RoleCourier:
		return PartyCouriers
	case RoleSuperAdmin:
		return PartySuperAdmin
	}
	return ""
}

// PartyID is the id used in recipient/member/sender columns. The super-admin
// has no row of its own and is addressed with a NULL id.
func (i Identity) PartyID() *uint {
	if i.Role == RoleSuperAdmin || i.IsGuest() {
		return nil
	}
	id := i.ID
	return &id
}

// Key is a stable textual form, used for cache keys and private chat pairs.
func (i Identity) Key() string {
	if i.IsGuest() {
		return "guest:" + i.SessionID
	}
	return fmt.Sprintf("%s:%d", i.Party(), i.ID)
}

func (i Identity) String() string {
	return i.Key()
}

// PartyType is the canonical recipient / member / sender type.
type PartyType string

const (
	PartyUsers      PartyType = "users"
	PartyStaff      PartyType = "staff"
	PartyCouriers   PartyType = "couriers"
	PartySuperAdmin PartyType = "super_admin"
	PartyAll        PartyType = "all"
)

// ParsePartyType normalises external aliases once, at the boundary.
func ParsePartyType(s string) (PartyType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "users", "customer", "customers", "client", "clients":
		return PartyUsers, true
	case "staff", "staffs", "employee", "employees":
		return PartyStaff, true
	case "courier", "couriers", "driver", "drivers":
		return PartyCouriers, true
	case "super_admin", "superadmin", "super-admin", "admin":
		return PartySuperAdmin, true
	case "all", "everyone", "broadcast":
		return PartyAll, true
	}
	return "", false
}

// IdentityFor builds the identity addressed by a party type and id.
// PartyAll addresses no single identity.
func IdentityFor(p PartyType, id uint) (Identity, bool) {
	switch p {
	case PartyUsers:
		return UserIdentity(id), id != 0
	case PartyStaff:
		return StaffIdentity(id), id != 0
	case PartyCouriers:
		return CourierIdentity(id), id != 0
	case PartySuperAdmin:
		return SuperAdminIdentity(), true
	}
	return Identity{}, false
}
