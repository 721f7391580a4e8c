package server

import (
	"encoding/json"

	"chatrelay/pkg/protocol"
)

// Rejection reasons sent back in a failed auth_response. Bad credentials
// and an already-online username are deliberately distinct.
const (
	ReasonInvalidRequest = "invalid login request"
	ReasonBadCredentials = "invalid username or password"
	ReasonAlreadyOnline  = "username already online"
)

// defaultCredentials is the fixed credential table. Compared as plaintext;
// hashing and external identity sources are out of scope.
var defaultCredentials = map[string]string{
	"user1": "pass123",
	"user2": "pass123",
	"user3": "pass123",
	"user4": "pass123",
	"user5": "pass123",
}

// AuthResult is the outcome of evaluating a connection's first frame.
type AuthResult struct {
	OK       bool
	Username string
	Reason   string // rejection reason when !OK
}

// AuthGate validates a single login attempt per connection against the
// static credential table and current registry state. Exactly one attempt
// is permitted; there is no retry after a rejection.
type AuthGate struct {
	credentials map[string]string
	registry    *Registry
}

// NewAuthGate creates a gate over the default credential table.
func NewAuthGate(registry *Registry) *AuthGate {
	return &AuthGate{credentials: defaultCredentials, registry: registry}
}

// Evaluate inspects the first raw frame of a connection. Anything but a
// well-formed login message is rejected with a generic reason. The
// already-online check here is advisory (it produces the specific reason
// early); Registry.Register remains the authoritative uniqueness check.
func (g *AuthGate) Evaluate(raw []byte) AuthResult {
	msg, err := protocol.Decode(raw)
	if err != nil {
		return AuthResult{Reason: ReasonInvalidRequest}
	}

	login, ok := msg.(*protocol.Login)
	if !ok || !hasCredentialFields(raw) {
		return AuthResult{Reason: ReasonInvalidRequest}
	}

	password, known := g.credentials[login.Username]
	if !known || password != login.Password {
		return AuthResult{Reason: ReasonBadCredentials}
	}

	if g.registry.IsOnline(login.Username) {
		return AuthResult{Reason: ReasonAlreadyOnline}
	}

	return AuthResult{OK: true, Username: login.Username}
}

// hasCredentialFields reports whether both username and password keys are
// present in the frame. A present-but-wrong password is a credential
// mismatch, not a malformed request, so field presence matters.
func hasCredentialFields(raw []byte) bool {
	var probe struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Username != nil && probe.Password != nil
}
