package user

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

var AllRoles = []string{RoleStudent, RoleInstructor, RoleAdmin}

// User is the signed-in user as asserted by the identity provider.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

func (u User) IsStudent() bool    { return u.Role == RoleStudent || u.Role == "" }
func (u User) IsInstructor() bool { return u.Role == RoleInstructor }
func (u User) IsAdmin() bool      { return u.Role == RoleAdmin }

// CanEnroll reports whether the user may enroll in courses. Instructors publish courses, they do not take them.
func (u User) CanEnroll() bool {
	return !u.IsInstructor()
}

func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
