// broker.go — Session broker over one physical browser connection.
// The broker owns "current client or none" and mints logical sessions
// lazily. Session reuse is caller-driven: pass back the id you received.
// Creating a session twice without echoing the id mints two distinct
// logical sessions on the same physical connection. This layer never
// retries; a missing connection is an immediate ErrNotConnected.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned for any operation needing a physical
// connection when none is established. Recovered locally by the provider
// wrapper and surfaced in the result envelope.
var ErrNotConnected = errors.New("browser not connected")

// TransportError wraps a failed wire call with its method context.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wire call %s failed: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is the physical debugging-protocol connection, provided by the
// external transport layer.
type Client interface {
	// Send issues one wire command on the given logical session.
	Send(ctx context.Context, method string, params any, sessionID string) (json.RawMessage, error)
	// CreateSession mints a new logical session, optionally pinned to a
	// target.
	CreateSession(ctx context.Context, targetHint string) (string, error)
}

// Broker multiplexes logical sessions over the current physical connection.
type Broker struct {
	mu     sync.RWMutex
	client Client
	minted map[string]bool // session ids this broker created on the current connection
	log    *logrus.Entry
}

// NewBroker creates a broker with no connection.
func NewBroker(log *logrus.Entry) *Broker {
	return &Broker{
		minted: make(map[string]bool),
		log:    log,
	}
}

// SetClient installs the physical connection. Sessions minted on a previous
// connection are forgotten.
func (b *Broker) SetClient(c Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = c
	b.minted = make(map[string]bool)
}

// ClearClient drops the physical connection.
func (b *Broker) ClearClient() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = nil
	b.minted = make(map[string]bool)
}

// Current returns the active client, or false when disconnected.
func (b *Broker) Current() (Client, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client, b.client != nil
}

// Acquire resolves a session id for one invocation. A caller-supplied id is
// trusted and echoed back; an empty id mints a fresh session on the current
// connection. Pooling decisions live here and nowhere else.
func (b *Broker) Acquire(ctx context.Context, id string) (string, error) {
	client, ok := b.Current()
	if !ok {
		return "", ErrNotConnected
	}
	if id != "" {
		return id, nil
	}

	minted, err := client.CreateSession(ctx, "")
	if err != nil {
		return "", &TransportError{Method: "Target.attachToTarget", Err: err}
	}

	b.mu.Lock()
	b.minted[minted] = true
	b.mu.Unlock()

	b.log.WithField("session_id", minted).Debug("minted logical session")
	return minted, nil
}

// Minted reports whether this broker created the given session id on the
// current connection.
func (b *Broker) Minted(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.minted[id]
}

// Send issues a wire command on the current connection, wrapping transport
// failures with method context.
func (b *Broker) Send(ctx context.Context, method string, params any, sessionID string) (json.RawMessage, error) {
	client, ok := b.Current()
	if !ok {
		return nil, ErrNotConnected
	}
	result, err := client.Send(ctx, method, params, sessionID)
	if err != nil {
		b.log.WithFields(logrus.Fields{
			"method":     method,
			"session_id": sessionID,
		}).WithError(err).Warn("wire call failed")
		return nil, &TransportError{Method: method, Err: err}
	}
	return result, nil
}
