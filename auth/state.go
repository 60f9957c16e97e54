package auth

// State is the manager's position in the session lifecycle.
//
//	Anonymous --SignUp/SignIn--> Authenticating --ok--> Authenticated
//	Authenticating --failure--> Anonymous
//	Authenticated --expiry within 60s--> Expired (derived on read)
//	Expired --CurrentSession--> Refreshing --ok--> Authenticated
//	Refreshing --failure--> Anonymous
//	Authenticated/Expired --SignOut--> Anonymous
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Refreshing
	Expired
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Expired:
		return "expired"
	}
	return "unknown"
}
