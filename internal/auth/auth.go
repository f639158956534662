// Package auth maps bearer credentials to request identities.
//
// Two authenticators ship: Static implements the demo harness's fixed
// token scheme (a sentinel admin token, a user- prefix, anonymous
// fallthrough) and JWT validates Ed25519-signed tokens. Static is the
// default so the harness works with zero key management; it is a stub,
// not a production posture.
package auth

import "errors"

// Role is the access level derived from a credential.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

// Identity is the per-request principal. Derived from a credential,
// never persisted.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// ErrUnauthorized is returned for a credential that is present but not
// recognized. Callers surface it as HTTP 401.
var ErrUnauthorized = errors.New("auth: invalid authentication token")

// Authenticator maps a bearer credential to an Identity. The credential is
// the raw token, without the "Bearer " prefix; empty means no credential
// was presented.
type Authenticator interface {
	Authenticate(credential string) (Identity, error)
}

// DefaultAdminToken is the sentinel credential the demo accepts as admin.
const DefaultAdminToken = "demo-token"

// userTokenPrefix marks self-identifying user credentials: the token
// "user-alice" authenticates as user "user-alice".
const userTokenPrefix = "user-"

// Static is the demo authenticator. It is a pure function of its input
// and holds no shared state.
type Static struct {
	// AdminToken is the sentinel admin credential; DefaultAdminToken when empty.
	AdminToken string
}

// NewStatic creates a Static authenticator. An empty adminToken selects
// DefaultAdminToken.
func NewStatic(adminToken string) Static {
	if adminToken == "" {
		adminToken = DefaultAdminToken
	}
	return Static{AdminToken: adminToken}
}

// Authenticate maps a credential to an identity:
//   - no credential: anonymous (the demo permits unauthenticated access)
//   - the sentinel admin token: demo-user with the admin role
//   - "user-*": that user ID with the user role
//   - anything else: ErrUnauthorized
func (s Static) Authenticate(credential string) (Identity, error) {
	switch {
	case credential == "":
		return Identity{UserID: "anonymous", Role: RoleAnonymous}, nil
	case credential == s.adminToken():
		return Identity{UserID: "demo-user", Role: RoleAdmin}, nil
	case len(credential) > len(userTokenPrefix) && credential[:len(userTokenPrefix)] == userTokenPrefix:
		return Identity{UserID: credential, Role: RoleUser}, nil
	default:
		return Identity{}, ErrUnauthorized
	}
}

func (s Static) adminToken() string {
	if s.AdminToken == "" {
		return DefaultAdminToken
	}
	return s.AdminToken
}
