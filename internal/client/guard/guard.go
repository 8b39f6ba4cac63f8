// Package guard decides whether a view may be shown to the current viewer.
//
// Decide is a pure function of the route and whether someone is logged in;
// it holds no state. Remembering where to return after login is the
// caller's job (session.Store.SetReturnTo).
package guard

// Default destinations.
const (
	LoginPath = "login"
	HomePath  = "home"
)

// Route describes a navigation target.
type Route struct {
	Path         string
	RequiresAuth bool
}

// Outcome is what the caller should do with a Route.
type Outcome int

const (
	Render Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	if o == Redirect {
		return "redirect"
	}
	return "render"
}

// Decision is the result of Decide. To and ReturnTo are set only for
// Redirect.
type Decision struct {
	Outcome  Outcome
	To       string
	ReturnTo string
}

// Decide renders route when it is public or a viewer is logged in.
// Otherwise it redirects to LoginPath, carrying route.Path as ReturnTo.
func Decide(loggedIn bool, route Route) Decision {
	if !route.RequiresAuth || loggedIn {
		return Decision{Outcome: Render}
	}
	return Decision{Outcome: Redirect, To: LoginPath, ReturnTo: route.Path}
}

// AfterLogin returns where to go once login succeeds: the remembered path,
// or HomePath. The login view itself is never a destination.
func AfterLogin(returnTo string) string {
	if returnTo == "" || returnTo == LoginPath {
		return HomePath
	}
	return returnTo
}
