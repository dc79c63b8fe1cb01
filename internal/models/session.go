package models

// User is a signed-in user as reported by the auth provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Session exposes whether a user is currently signed in.
type Session interface {
	CurrentUser() (User, bool)
}

// AnonymousSession is a Session without a user.
type AnonymousSession struct{}

// CurrentUser always reports no user.
func (AnonymousSession) CurrentUser() (User, bool) {
	return User{}, false
}

// UserSession is a Session for a known user.
type UserSession struct {
	User User
}

// CurrentUser returns the wrapped user.
func (s UserSession) CurrentUser() (User, bool) {
	return s.User, s.User.ID != ""
}
