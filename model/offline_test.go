package model

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineEmbedderDeterministic(t *testing.T) {
	e := NewOfflineEmbedder(64)

	a, err := e.Embed(context.Background(), "replace the filter cartridge")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "replace the filter cartridge")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Embed(context.Background(), "torque specifications")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestOfflineEmbedderUnitLength(t *testing.T) {
	e := NewOfflineEmbedder(256)
	vec, err := e.Embed(context.Background(), "hydraulic pump assembly")
	require.NoError(t, err)
	require.Len(t, vec, 256)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestOfflineEmbedderDefaultDimension(t *testing.T) {
	e := NewOfflineEmbedder(0)
	assert.Equal(t, DefaultEmbeddingDim, e.Dimension())
}
