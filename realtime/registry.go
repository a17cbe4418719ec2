package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/MrEthical07/goTrust/internal/logging"
)

// CloseForceLogout is the close status sent to kicked clients. It sits in the
// private-use range so clients can tell a kick from a network failure.
const CloseForceLogout = 4401

// CloseGoingAway is sent to every connection on Shutdown.
const CloseGoingAway = 1001

// MessageForceLogout is the Type of the message pushed before a kick.
const MessageForceLogout = "force_logout"

// ErrRegistryClosed is returned by Connect after Shutdown.
var ErrRegistryClosed = errors.New("realtime: registry closed")

// Message is a server push.
type Message struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// Conn is one live push connection.
type Conn interface {
	Send(ctx context.Context, msg Message) error
	Close(code int, reason string) error
}

// Registry maps account ids to their live connections.
type Registry struct {
	logger logging.Logger

	mu     sync.RWMutex
	conns  map[string]map[Conn]struct{}
	closed bool
}

// NewRegistry returns an empty registry. A nil logger discards output.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Registry{
		logger: logger,
		conns:  make(map[string]map[Conn]struct{}),
	}
}

// Connect registers c for accountID.
func (r *Registry) Connect(accountID string, c Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	set := r.conns[accountID]
	if set == nil {
		set = make(map[Conn]struct{})
		r.conns[accountID] = set
	}
	set[c] = struct{}{}
	return nil
}

// Disconnect forgets c. Unknown connections are ignored.
func (r *Registry) Disconnect(accountID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(accountID, c)
}

func (r *Registry) removeLocked(accountID string, c Conn) {
	set := r.conns[accountID]
	if set == nil {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, accountID)
	}
}

// snapshot copies the account's connections so delivery runs without the lock.
func (r *Registry) snapshot(accountID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[accountID]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Push sends msg to every connection of accountID and returns how many
// accepted it. Connections that fail are closed and dropped.
func (r *Registry) Push(ctx context.Context, accountID string, msg Message) int {
	delivered := 0
	for _, c := range r.snapshot(accountID) {
		if err := c.Send(ctx, msg); err != nil {
			r.logger.Warn(ctx, "realtime: push failed", "account_id", accountID, "error", err)
			_ = c.Close(CloseGoingAway, "")
			r.Disconnect(accountID, c)
			continue
		}
		delivered++
	}
	return delivered
}

// ForceClose closes every connection of accountID with code and forgets
// them. It returns how many were registered.
func (r *Registry) ForceClose(accountID string, code int, reason string) int {
	r.mu.Lock()
	set := r.conns[accountID]
	delete(r.conns, accountID)
	r.mu.Unlock()

	for c := range set {
		if err := c.Close(code, reason); err != nil {
			r.logger.Warn(context.Background(), "realtime: close failed", "account_id", accountID, "error", err)
		}
	}
	return len(set)
}

// Kick pushes a force_logout message to accountID and then closes its
// connections with CloseForceLogout.
func (r *Registry) Kick(ctx context.Context, accountID, reason string) int {
	r.Push(ctx, accountID, Message{Type: MessageForceLogout, Reason: reason})
	return r.ForceClose(accountID, CloseForceLogout, MessageForceLogout)
}

// Count returns the live connections of accountID.
func (r *Registry) Count(accountID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[accountID])
}

// Total returns the live connections across all accounts.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}

// Shutdown closes every connection and rejects further Connect calls.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]map[Conn]struct{})
	r.closed = true
	r.mu.Unlock()

	for _, set := range conns {
		for c := range set {
			_ = c.Close(CloseGoingAway, "server shutdown")
		}
	}
}
