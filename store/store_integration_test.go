package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/plutolang/pluto/codegen/ir"
	"github.com/plutolang/pluto/container"
)

var (
	testMongoClient    *mongodriver.Client
	testMongoContainer *mongodb.MongoDBContainer
	skipMongoIntegration bool
)

// TestMain starts a single MongoDB container for the package, mirroring
// eventbus's container-per-package lifecycle but through the dedicated
// testcontainers mongodb module rather than a hand-built
// testcontainers.ContainerRequest, since a purpose-built module is
// available for Mongo.
func TestMain(m *testing.M) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		fmt.Printf("Docker not available, integration tests will be skipped: %v\n", err)
		skipMongoIntegration = true
	} else {
		testMongoContainer = mongoContainer
		connStr, err := mongoContainer.ConnectionString(ctx)
		if err != nil {
			skipMongoIntegration = true
		} else {
			cli, err := mongodriver.Connect(options.Client().ApplyURI(connStr))
			if err != nil {
				skipMongoIntegration = true
			} else {
				pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				if err := cli.Ping(pingCtx, nil); err != nil {
					skipMongoIntegration = true
				} else {
					testMongoClient = cli
				}
			}
		}
	}

	code := m.Run()

	if testMongoClient != nil {
		_ = testMongoClient.Disconnect(context.Background())
	}
	if testMongoContainer != nil {
		_ = testMongoContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

func getMongoStore(t *testing.T) Store {
	t.Helper()
	if skipMongoIntegration {
		t.Skip("Docker not available, skipping integration test")
	}
	s, err := New(Options{
		Client:     testMongoClient,
		Database:   "pluto_test",
		Collection: "containers_" + t.Name(),
	})
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTripsThroughRealMongo(t *testing.T) {
	s := getMongoStore(t)
	ctx := context.Background()

	cont := &container.Container{
		Module:  &ir.Module{Funcs: []*ir.Func{{Name: "main"}}},
		Derived: container.BuildDerived(nil),
	}
	key := HashSource([]byte("fn main() {}"))
	require.NoError(t, s.Put(ctx, key, cont))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got.Module.Funcs, 1)
	require.Equal(t, "main", got.Module.Funcs[0].Name)
}

func TestGetMissingKeyReturnsErrNotFoundAgainstRealMongo(t *testing.T) {
	s := getMongoStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPingSucceedsAgainstRealMongo(t *testing.T) {
	s := getMongoStore(t)
	require.NoError(t, s.Ping(context.Background()))
}
