package temporal_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plutolang/pluto/runtime/concurrency/engine/production"
	"github.com/plutolang/pluto/runtime/concurrency/engine/temporal"
)

func TestNewRequiresTaskQueue(t *testing.T) {
	_, err := temporal.New(temporal.Options{}, production.New())
	require.Error(t, err)
}

func TestNewRequiresFallbackEngine(t *testing.T) {
	_, err := temporal.New(temporal.Options{
		WorkerOptions: temporal.WorkerOptions{TaskQueue: "stage.default"},
	}, nil)
	require.Error(t, err)
}

func TestNewRequiresClientOrClientOptions(t *testing.T) {
	_, err := temporal.New(temporal.Options{
		WorkerOptions: temporal.WorkerOptions{TaskQueue: "stage.default"},
	}, production.New())
	require.Error(t, err)
}
