package enrollment

import (
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/user"
)

// Resolve tells whether usr is enrolled in crs: usr is signed in and its id is one of crs.EnrolledUsers.
// It has no side effects and caches nothing; callers re-fetch the course after enrolling.
func Resolve(crs course.Course, usr *user.User) EnrollmentStatus {
	if usr == nil || !crs.HasEnrolled(usr.ID) {
		return NotEnrolled
	}
	return Enrolled
}
