package user

// Session is the authenticated caller: the user and the bearer token it presented.
// The token is forwarded verbatim to the payment backend.
type Session struct {
	User  *User
	Token string
}

func NewSession(usr User, token string) Session {
	return Session{User: &usr, Token: token}
}

// Authenticated reports whether a user is signed in and holds a bearer credential.
func (s Session) Authenticated() bool {
	return s.User != nil && s.User.ID != "" && s.Token != ""
}

// UserID returns the signed-in user id or "" when anonymous.
func (s Session) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}
