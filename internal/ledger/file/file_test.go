package file

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerPersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	ctx := context.Background()

	first := New(fs, "state/processed.yaml")
	seen, err := first.Seen(ctx, "B_20240103000000_vag.png")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, first.Mark(ctx, "B_20240103000000_vag.png"))
	require.NoError(t, first.Mark(ctx, "A_20240101000000_vag.png"))
	require.NoError(t, first.Mark(ctx, "B_20240103000000_vag.png"))

	second := New(fs, "state/processed.yaml")
	seen, err = second.Seen(ctx, "B_20240103000000_vag.png")
	require.NoError(t, err)
	assert.True(t, seen)

	raw, err := afero.ReadFile(fs, "state/processed.yaml")
	require.NoError(t, err)
	assert.Equal(t, "processed:\n- A_20240101000000_vag.png\n- B_20240103000000_vag.png\n", string(raw))
}

func TestLedgerCorruptFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultPath, []byte("processed: [unterminated"), 0o644))

	_, err := New(fs, "").Seen(context.Background(), "x")
	require.Error(t, err)
}
