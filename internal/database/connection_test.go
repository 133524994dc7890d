package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := NewPool(context.Background(), Config{URL: "postgres://%zz"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse database config")
}

func TestNewPool_EmptyURL(t *testing.T) {
	_, err := NewPool(context.Background(), Config{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is empty")
}
