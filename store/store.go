// Package store persists compiled PLTO v3 containers (container.Container)
// to MongoDB, keyed by a stable hash of the source program, so repeated
// compiles of unchanged source can be served from cache.
//
// Grounded on the teacher's features/runlog/mongo/clients/mongo.Client: the
// same Options-struct-plus-interface-seam shape (a narrow collection
// interface wrapping *mongo.Collection so tests can fake it) and a
// health.Pinger-compatible Ping method. Generalized from an append-only
// event log (which indexes in New) to an upsert-by-key container cache,
// which needs no secondary index beyond the default one on _id.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/plutolang/pluto/container"
)

// Store persists and retrieves compiled containers keyed by program hash.
type Store interface {
	Ping(ctx context.Context) error

	// Put upserts c under key, overwriting any previously stored container
	// for that key.
	Put(ctx context.Context, key string, c *container.Container) error

	// Get returns the container stored under key, or ErrNotFound if absent.
	Get(ctx context.Context, key string) (*container.Container, error)
}

// ErrNotFound is returned by Get when no container is stored under the
// given key.
var ErrNotFound = errors.New("pluto: no container stored for key")

// HashSource returns the stable cache key for a source program: the hex
// SHA-256 digest of its bytes (spec.md §6's container is a serialization of
// the program, so identical source always yields an identical digest and
// therefore an identical cache key).
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// Options configures the Mongo-backed Store implementation.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

const (
	defaultCollection = "pluto_containers"
	defaultTimeout    = 5 * time.Second
	clientName        = "pluto-container-store"
)

type containerDocument struct {
	Key       string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type client struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

// New returns a Store backed by the provided MongoDB client.
func New(opts Options) (Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	mcoll := opts.Client.Database(opts.Database).Collection(coll)
	return &client{mongo: opts.Client, coll: mongoCollection{coll: mcoll}, timeout: timeout}, nil
}

func (c *client) Name() string { return clientName }

func (c *client) Ping(ctx context.Context) error {
	return c.mongo.Ping(ctx, nil)
}

func (c *client) Put(ctx context.Context, key string, cont *container.Container) error {
	if key == "" {
		return errors.New("key is required")
	}
	if cont == nil {
		return errors.New("container is required")
	}
	var buf bytes.Buffer
	if err := container.Write(&buf, cont); err != nil {
		return fmt.Errorf("encode container: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	doc := containerDocument{Key: key, Payload: buf.Bytes(), UpdatedAt: time.Now().UTC()}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (c *client) Get(ctx context.Context, key string) (*container.Container, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var doc containerDocument
	err := c.coll.FindOne(ctx, bson.M{"_id": key}, &doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return container.Read(bytes.NewReader(doc.Payload))
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// collection narrows *mongo.Collection to the operations this package
// needs, the same test seam the teacher's mongo client uses.
type collection interface {
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error)
	FindOne(ctx context.Context, filter any, out any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (m mongoCollection) ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error) {
	return m.coll.ReplaceOne(ctx, filter, replacement, opts...)
}

func (m mongoCollection) FindOne(ctx context.Context, filter any, out any) error {
	return m.coll.FindOne(ctx, filter).Decode(out)
}
