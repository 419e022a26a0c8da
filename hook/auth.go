package hook

import (
	"crypto/subtle"
	"sync"
)

// SharedCredentialAuthHook authenticates every connection against a
// single configured username/password pair — the broker has no
// per-user identity store, only one shared credential, per the
// cluster/multi-user non-goal.
type SharedCredentialAuthHook struct {
	*Base
	mu       sync.RWMutex
	username string
	password string
}

// NewSharedCredentialAuthHook creates a hook that checks connections
// against one shared username/password pair.
func NewSharedCredentialAuthHook(username, password string) *SharedCredentialAuthHook {
	return &SharedCredentialAuthHook{
		Base:     &Base{id: "shared-credential-auth"},
		username: username,
		password: password,
	}
}

// ID returns the hook identifier.
func (h *SharedCredentialAuthHook) ID() string {
	return h.id
}

// Provides indicates this hook provides authentication.
func (h *SharedCredentialAuthHook) Provides(event Event) bool {
	return event == OnConnectAuthenticate
}

// SetCredential replaces the shared username/password pair.
func (h *SharedCredentialAuthHook) SetCredential(username, password string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.username = username
	h.password = password
}

// OnConnectAuthenticate validates username and password against the
// one configured shared credential, using a constant-time comparison
// so response timing doesn't leak how much of the password matched.
func (h *SharedCredentialAuthHook) OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool {
	h.mu.RLock()
	username, password := h.username, h.password
	h.mu.RUnlock()

	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(packet.Username)) == 1
	passwordMatch := subtle.ConstantTimeCompare([]byte(password), packet.Password) == 1
	return usernameMatch && passwordMatch
}

// AnonymousAuthHook controls whether clients with no username/password
// are allowed to connect.
type AnonymousAuthHook struct {
	*Base
	allowAnonymous bool
	mu             sync.RWMutex
}

// NewAnonymousAuthHook creates a hook that controls anonymous access.
func NewAnonymousAuthHook(allowAnonymous bool) *AnonymousAuthHook {
	return &AnonymousAuthHook{
		Base:           &Base{id: "anonymous-auth"},
		allowAnonymous: allowAnonymous,
	}
}

// ID returns the hook identifier.
func (h *AnonymousAuthHook) ID() string {
	return h.id
}

// Provides indicates this hook provides authentication.
func (h *AnonymousAuthHook) Provides(event Event) bool {
	return event == OnConnectAuthenticate
}

// SetAllowAnonymous sets whether to allow anonymous connections.
func (h *AnonymousAuthHook) SetAllowAnonymous(allow bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allowAnonymous = allow
}

// IsAnonymousAllowed returns whether anonymous connections are allowed.
func (h *AnonymousAuthHook) IsAnonymousAllowed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.allowAnonymous
}

// OnConnectAuthenticate checks if anonymous access is allowed.
func (h *AnonymousAuthHook) OnConnectAuthenticate(client *Client, packet *ConnectPacket) bool {
	h.mu.RLock()
	allow := h.allowAnonymous
	h.mu.RUnlock()

	if packet.Username == "" && packet.Password == nil {
		return allow
	}

	return true
}
