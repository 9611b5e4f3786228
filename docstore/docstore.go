// Package docstore abstracts the document collection that persists auth
// records, and wraps it with a bounded-retry gateway. Backends: MongoDB,
// SQLite, and an in-memory store for tests.
package docstore

import (
	"context"
	"time"
)

// Record is the physical persisted unit. ID is the session-namespaced key
// (at most 200 characters), Value the opaque serialized payload, and Session
// a copy of the session name kept for indexed namespace sweeps.
type Record struct {
	ID        string    `bson:"_id" json:"_id"`
	Value     []byte    `bson:"value" json:"value"`
	Session   string    `bson:"session" json:"session"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Store is a connected document collection. Connect is idempotent: a no-op
// when the connection is already healthy. All point operations are idempotent
// at the storage layer (Write upserts, Delete ignores absent keys) so the
// gateway can retry them without duplicating side effects.
type Store interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Read returns the record for key, or (nil, nil) when absent.
	Read(ctx context.Context, key string) (*Record, error)
	// Write upserts value under key, stamping the session and timestamps.
	Write(ctx context.Context, key, session string, value []byte) error
	// Delete removes key; removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteNamespace removes every record of session except excludeKeys.
	DeleteNamespace(ctx context.Context, session string, excludeKeys []string) error
	// DeleteAllNamespace removes every record of session.
	DeleteAllNamespace(ctx context.Context, session string) error
}

// connState is the lifecycle of a store's shared connection handle.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// MaxKeyLen is the longest record identifier a backend accepts.
const MaxKeyLen = 200

// MaxSessionLen is the longest session name a backend accepts.
const MaxSessionLen = 100
