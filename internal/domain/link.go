package domain

import "time"

// AgentUserIDPrefix namespaces the pseudonymous ids we hand to the voice
// platform so they never collide with another integration's id space.
const AgentUserIDPrefix = "plangrove-"

// AgentUserID derives the stable pseudonymous id exposed to the platform.
func AgentUserID(userID string) string {
	return AgentUserIDPrefix + userID
}

// Link binds a local account to the voice platform's agent identity.
// At most one Link exists per user; deleting it is the sole revocation
// mechanism for previously issued tokens.
type Link struct {
	UserID         string
	AgentUserID    string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	LinkedGroveIDs []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasGrove reports whether the user consented to expose the grove.
func (l Link) HasGrove(groveID string) bool {
	for _, id := range l.LinkedGroveIDs {
		if id == groveID {
			return true
		}
	}
	return false
}

// AuthorizationCode is a short-lived single-use code issued at consent time
// and redeemed exactly once at the token endpoint.
type AuthorizationCode struct {
	Code        string
	UserID      string
	RedirectURI string
	ExpiresAt   time.Time
	Used        bool
	CreatedAt   time.Time
}
