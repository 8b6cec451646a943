package model

// Role is the single role a user holds.
type Role string

const (
	RolePatient       Role = "patient"
	RoleDoctor        Role = "doctor"
	RoleReception     Role = "reception"
	RoleDriver        Role = "driver"
	RoleLabTechnician Role = "lab_technician"
	RoleAdmin         Role = "admin"
	RoleSuperAdmin    Role = "super_admin"
)

// AllRoles is the closed role set.
var AllRoles = []Role{
	RolePatient,
	RoleDoctor,
	RoleReception,
	RoleDriver,
	RoleLabTechnician,
	RoleAdmin,
	RoleSuperAdmin,
}

// ElevatableRoles are the roles a patient may request.
var ElevatableRoles = []Role{
	RoleDoctor,
	RoleReception,
	RoleDriver,
	RoleLabTechnician,
}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) Elevatable() bool {
	for _, role := range ElevatableRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether r carries administrator rights.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}
