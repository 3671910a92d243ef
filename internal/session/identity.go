package session

// Identity describes who is driving the widget. Logged-in callers are routed
// to the existing-customer flow endpoint and their stored CRM profile.
type Identity interface {
	IsLoggedIn() bool
	EmailID() string
	LoginID() string
}

// Anonymous is the identity of a visitor with no login.
type Anonymous struct{}

func (Anonymous) IsLoggedIn() bool { return false }
func (Anonymous) EmailID() string  { return "" }
func (Anonymous) LoginID() string  { return "" }

// LoggedIn identifies a caller by the email and login identifiers the host
// page supplies.
type LoggedIn struct {
	Email string
	Login string
}

func (l LoggedIn) IsLoggedIn() bool { return l.Email != "" }
func (l LoggedIn) EmailID() string  { return l.Email }
func (l LoggedIn) LoginID() string  { return l.Login }
