package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/plutolang/pluto/codegen/ir"
	"github.com/plutolang/pluto/container"
)

// fakeCollection stands in for *mongo.Collection, the same seam the
// teacher's client_test.go exercises via fakeCollection against
// features/runlog/mongo/clients/mongo.client.
type fakeCollection struct {
	stored map[string]containerDocument
}

func (f *fakeCollection) ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error) {
	doc, ok := replacement.(containerDocument)
	if !ok {
		return nil, errors.New("unexpected replacement type")
	}
	if f.stored == nil {
		f.stored = map[string]containerDocument{}
	}
	f.stored[doc.Key] = doc
	return &mongodriver.UpdateResult{}, nil
}

func (f *fakeCollection) FindOne(ctx context.Context, filter any, out any) error {
	m, _ := filter.(bson.M)
	key, _ := m["_id"].(string)
	doc, ok := f.stored[key]
	if !ok {
		return mongodriver.ErrNoDocuments
	}
	dst, ok := out.(*containerDocument)
	if !ok {
		return errors.New("unexpected out type")
	}
	*dst = doc
	return nil
}

func TestHashSourceIsStableAndContentAddressed(t *testing.T) {
	a := HashSource([]byte("fn main() {}"))
	b := HashSource([]byte("fn main() {}"))
	c := HashSource([]byte("fn other() {}"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestPutGetRoundTripsThroughFakeCollection(t *testing.T) {
	fc := &fakeCollection{}
	c := &client{coll: fc}

	cont := &container.Container{
		Module:  &ir.Module{Funcs: []*ir.Func{{Name: "main"}}},
		Derived: container.BuildDerived(nil),
	}
	key := HashSource([]byte("fn main() {}"))
	require.NoError(t, c.Put(context.Background(), key, cont))

	got, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, got.Module.Funcs, 1)
	require.Equal(t, "main", got.Module.Funcs[0].Name)
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	fc := &fakeCollection{}
	c := &client{coll: fc}
	_, err := c.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
