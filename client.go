// Package wastore persists WhatsApp-web authentication state (the
// credential bundle and Signal-protocol key records of one logical session)
// in a document store, with bounded retry on storage failures. Sessions
// share one physical collection and are isolated by a validated session
// identifier.
package wastore

import (
	"context"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wastore/wastore/docstore"
	"github.com/wastore/wastore/waerr"
	"github.com/wastore/wastore/wire"
)

const (
	// DefaultCollectionName is the collection auth records live in.
	DefaultCollectionName = "baileys-auth"
	// DefaultDatabaseName is the MongoDB database used when none is set.
	DefaultDatabaseName = "baileys"
)

var (
	sessionRe    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
	collectionRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,120}$`)
)

// Record is a raw persisted record, exposed by Query as a generic escape
// hatch.
type Record struct {
	ID        string
	Value     []byte
	Session   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthState is what the application layer consumes: the credential bundle
// plus the key store scoped to the same session.
type AuthState struct {
	Creds *Credentials
	Keys  *SignalKeyStore
}

type config struct {
	session    string
	collection string
	database   string
	mongoOpts  *options.ClientOptions
	sqlitePath string
	store      docstore.Store
	maxRetries int
	retryDelay time.Duration
	debug      bool
	logger     *log.Logger
	curve      Curve
}

// Option configures a Client.
type Option func(*config)

// WithSession sets the required session identifier (alphanumeric, underscore,
// hyphen; 1-100 characters).
func WithSession(session string) Option {
	return func(c *config) { c.session = session }
}

// WithCollectionName overrides the default collection name.
func WithCollectionName(name string) Option {
	return func(c *config) { c.collection = name }
}

// WithDatabaseName overrides the default MongoDB database name.
func WithDatabaseName(name string) Option {
	return func(c *config) { c.database = name }
}

// WithMongoOptions sets the pass-through MongoDB client options (URI,
// timeouts, pool size). Ignored when another backend is selected.
func WithMongoOptions(opts *options.ClientOptions) Option {
	return func(c *config) { c.mongoOpts = opts }
}

// WithMongoURI is shorthand for WithMongoOptions(options.Client().ApplyURI(uri)).
func WithMongoURI(uri string) Option {
	return func(c *config) { c.mongoOpts = options.Client().ApplyURI(uri) }
}

// WithSQLite selects the embedded SQLite backend at the given database path
// instead of MongoDB.
func WithSQLite(path string) Option {
	return func(c *config) { c.sqlitePath = path }
}

// WithStore injects a document-store implementation directly. Takes
// precedence over the built-in backends.
func WithStore(store docstore.Store) Option {
	return func(c *config) { c.store = store }
}

// WithMaxRetries overrides the per-operation attempt budget (default 10).
func WithMaxRetries(n int) Option {
	return func(c *config) { c.maxRetries = n }
}

// WithRetryDelay overrides the fixed delay between attempts (default 200ms).
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) { c.retryDelay = d }
}

// WithDebug enables diagnostic logging to stderr when no logger is set.
func WithDebug(debug bool) Option {
	return func(c *config) { c.debug = debug }
}

// WithLogger sets the logger for diagnostic output. If not set, logging is
// disabled unless WithDebug installs the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithCurve injects the cryptography provider used by credential bootstrap.
func WithCurve(curve Curve) Option {
	return func(c *config) { c.curve = curve }
}

// logf logs a message if the logger is non-nil.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// Client is the auth-state store for one session.
type Client struct {
	session string
	store   docstore.Store
	gw      *docstore.Gateway
	keys    *SignalKeyStore
	curve   Curve
	logger  *log.Logger
}

// New validates the configuration and builds a Client. Validation failures
// (bad session identifier, bad collection name) abort construction with a
// ValidationError; no connection is attempted until the first operation.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		collection: DefaultCollectionName,
		database:   DefaultDatabaseName,
	}
	for _, o := range opts {
		o(cfg)
	}

	if !sessionRe.MatchString(cfg.session) {
		return nil, waerr.Validationf("session identifier %q must match [A-Za-z0-9_-]{1,100}", cfg.session)
	}
	if strings.HasPrefix(cfg.collection, "system.") {
		return nil, waerr.Validationf("collection name %q must not start with system.", cfg.collection)
	}
	if !collectionRe.MatchString(cfg.collection) {
		return nil, waerr.Validationf("collection name %q must match [a-zA-Z0-9_-]{1,120}", cfg.collection)
	}

	logger := cfg.logger
	if logger == nil && cfg.debug {
		logger = log.New(os.Stderr, "wastore: ", log.LstdFlags)
	}

	store := cfg.store
	switch {
	case store != nil:
	case cfg.sqlitePath != "":
		store = docstore.NewSQLiteStore(cfg.sqlitePath, cfg.collection)
	default:
		mongoOpts := cfg.mongoOpts
		if mongoOpts == nil {
			mongoOpts = options.Client()
		}
		store = docstore.NewMongoStore(mongoOpts, cfg.database, cfg.collection)
	}

	curve := cfg.curve
	if curve == nil {
		curve = DefaultCurve()
	}

	gw := docstore.NewGateway(store, cfg.maxRetries, cfg.retryDelay, logger)
	return &Client{
		session: cfg.session,
		store:   store,
		gw:      gw,
		keys:    &SignalKeyStore{gw: gw, session: cfg.session, logger: logger},
		curve:   curve,
		logger:  logger,
	}, nil
}

// Keys returns the session's key store.
func (c *Client) Keys() *SignalKeyStore { return c.keys }

// AuthState loads the credential bundle and returns it with the key store.
// When no bundle is persisted yet a fresh one is bootstrapped but not
// saved; call SaveCreds once the application accepts it.
func (c *Client) AuthState(ctx context.Context) (*AuthState, error) {
	rec, err := c.gw.Read(ctx, credsKey(c.session))
	if err != nil {
		return nil, err
	}
	var creds *Credentials
	if rec == nil {
		logf(c.logger, "no credentials for session %s, bootstrapping", c.session)
		creds, err = NewCredentials(c.curve)
		if err != nil {
			return nil, err
		}
	} else {
		creds = &Credentials{}
		if err := wire.Decode(rec.Value, creds); err != nil {
			return nil, err
		}
	}
	return &AuthState{Creds: creds, Keys: c.keys}, nil
}

// SaveCreds persists the credential bundle under the session's singleton
// credentials key.
func (c *Client) SaveCreds(ctx context.Context, creds *Credentials) error {
	if creds == nil {
		return waerr.Validationf("credentials must not be nil")
	}
	data, err := wire.Marshal(creds)
	if err != nil {
		return err
	}
	return c.gw.Write(ctx, credsKey(c.session), c.session, data)
}

// ClearSessionData removes every record of the session except the
// credentials record.
func (c *Client) ClearSessionData(ctx context.Context) error {
	return c.keys.Clear(ctx)
}

// RemoveAllSessionData removes every record of the session, credentials
// included.
func (c *Client) RemoveAllSessionData(ctx context.Context) error {
	return c.gw.DeleteAllNamespace(ctx, c.session)
}

// Query reads a raw record by its full storage key. Absent keys return
// (nil, nil).
func (c *Client) Query(ctx context.Context, id string) (*Record, error) {
	rec, err := c.gw.Read(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Record{
		ID:        rec.ID,
		Value:     rec.Value,
		Session:   rec.Session,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Disconnect tears down the store connection. Operations issued afterwards
// reconnect transparently.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.store.Disconnect(ctx)
}
