package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassSpanRecordsError(t *testing.T) {
	boom := errors.New("boom")
	err := PassSpan(context.Background(), Noop{}, "typeck", func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestPassSpanPropagatesSuccess(t *testing.T) {
	ran := false
	err := PassSpan(context.Background(), Noop{}, "parse", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
}
