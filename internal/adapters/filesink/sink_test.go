package filesink

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	payload := []byte("A1\nZ0")
	require.NoError(t, s.Deliver(ctx, "REMESSA_NSA_7701.txt", payload))

	got, err := os.ReadFile(s.Path("REMESSA_NSA_7701.txt"))
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDeliver_RefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Deliver(ctx, "REMESSA_NSA_1.txt", []byte("first")))
	assert.Error(t, s.Deliver(ctx, "REMESSA_NSA_1.txt", []byte("second")))

	got, err := os.ReadFile(s.Path("REMESSA_NSA_1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestDeliver_RejectsPaths(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Deliver(context.Background(), "../escape.txt", nil))
	assert.Error(t, s.Deliver(context.Background(), "", nil))
}
