package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/patch-warden/internal/core"
)

func TestRegistryClaimAndRelease(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Claim("batch-1", []string{"a.go", "b.go"}))

	// Any overlap refuses the whole claim.
	err := r.Claim("batch-2", []string{"b.go", "c.go"})
	assert.ErrorIs(t, err, core.ErrFilesBusy)

	// A refused claim must not leave partial reservations behind.
	require.NoError(t, r.Claim("batch-3", []string{"c.go"}))

	// Disjoint file sets run side by side.
	require.NoError(t, r.Claim("batch-4", []string{"d.go"}))

	r.Release("batch-1")
	require.NoError(t, r.Claim("batch-5", []string{"a.go", "b.go"}))
}

func TestRegistryReleaseUnknownBatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Claim("batch-1", []string{"a.go"}))

	r.Release("never-claimed")
	assert.ErrorIs(t, r.Claim("batch-2", []string{"a.go"}), core.ErrFilesBusy)
}
