package account

import (
	"strings"
	"time"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Coordinator
	RoleCoordinator = "coordinator:"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles       = []string{RoleAdmin, RoleAdminOwner}
	CoordinatorRoles = []string{RoleCoordinator}
	TeacherRoles     = []string{RoleTeacher}
	StudentRoles     = []string{RoleStudent}
	AllRoles         = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Coordinators: 20 - 11
		RoleCoordinator: 11,

		// Teachers: 10 - 6
		RoleTeacher: 6,

		// Students: 5 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Coordinator", Value: RoleCoordinator},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, CoordinatorRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Actor identifies the caller of a privileged operation. It is built from the
// identity provider's token claims; role claims are trusted as given but every
// privileged service method re-checks them before touching storage.
type Actor struct {
	ID    string
	Name  string
	Roles []string
}

func (a Actor) RoleStartsWith(prefix string) bool {
	for _, role := range a.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.RoleStartsWith(RoleAdmin)
}

func (a Actor) IsCoordinator() bool {
	return a.RoleStartsWith(RoleCoordinator)
}

func (a Actor) IsTeacher() bool {
	return a.RoleStartsWith(RoleTeacher)
}

func (a Actor) IsStudent() bool {
	return a.RoleStartsWith(RoleStudent)
}

// IsStaff reports whether the actor may perform enrollment verification and
// audit reads: admins and coordinators only.
func (a Actor) IsStaff() bool {
	return a.IsAdmin() || a.IsCoordinator()
}

// Account is the marketplace-side projection of an identity-provider account:
// just enough to render names, email verified students and gate suspended ones.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	Suspended bool      `json:"suspended"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (a Account) Actor() Actor {
	return Actor{ID: a.ID, Name: a.Name, Roles: a.Roles}
}
