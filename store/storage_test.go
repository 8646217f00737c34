package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToPgVector(t *testing.T) {
	assert.Equal(t, "[]", toPgVector(nil))
	assert.Equal(t, "[1.0000000000]", toPgVector([]float32{1}))
	assert.Equal(t, "[0.5000000000,-0.2500000000]", toPgVector([]float32{0.5, -0.25}))
}

func TestIsRecoverable(t *testing.T) {
	assert.False(t, isRecoverable(nil))
	assert.False(t, isRecoverable(errors.New("duplicate key value violates unique constraint")))

	assert.True(t, isRecoverable(errors.New("write failed: SSL connection has been closed unexpectedly")))
	assert.True(t, isRecoverable(errors.New("FATAL: server closed the connection unexpectedly")))
	assert.True(t, isRecoverable(errors.New("conn closed: connection already closed")))
	assert.True(t, isRecoverable(errors.New("connection not open")))
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, retryBackoff(1))
	assert.Equal(t, 300*time.Millisecond, retryBackoff(3))
	assert.Equal(t, time.Second, retryBackoff(50), "capped at one second")
}

func TestSchemaDDLDimension(t *testing.T) {
	ddl := schemaDDL(1536)
	assert.Contains(t, ddl, "embedding vector(1536)")
	assert.Contains(t, ddl, "GENERATED ALWAYS AS (to_tsvector('english', content)) STORED")
	assert.Contains(t, ddl, "UNIQUE (document_id, chunk_index)")
	assert.Contains(t, ddl, "UNIQUE (document_id, figure_label)")
}

func TestMetaRoundTrip(t *testing.T) {
	data, err := metaParam(map[string]any{"heading": "1. Intro"})
	assert.NoError(t, err)

	m, err := metaValue(data)
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"heading": "1. Intro"}, m)

	empty, err := metaParam(nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte("{}"), empty)

	m, err = metaValue(empty)
	assert.NoError(t, err)
	assert.Nil(t, m)

	m, err = metaValue(nil)
	assert.NoError(t, err)
	assert.Nil(t, m)
}
