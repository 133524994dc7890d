package admin

import (
	"context"
	"testing"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_Flags(t *testing.T) {
	cmd := ServeCmd()

	for _, name := range []string{"port", "no-migrate", "no-worker"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	port, err := cmd.Flags().GetString("port")
	require.NoError(t, err)
	assert.Empty(t, port)
}

func TestIndexCmd_RequiresFileID(t *testing.T) {
	cmd := IndexCmd()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"file-1"}))
}

func TestMigrateCmd_DefaultSource(t *testing.T) {
	cmd := MigrateCmd()

	source, err := cmd.Flags().GetString("source")
	require.NoError(t, err)
	assert.Equal(t, "file://migrations", source)
}

func TestUnconfiguredStorage(t *testing.T) {
	data, err := unconfiguredStorage{}.GetObject(context.Background(), "bucket", "key")

	assert.Nil(t, data)
	assert.ErrorIs(t, err, domain.ErrStorageNotEnabled)
	assert.True(t, domain.HasCode(err, domain.ErrCodeInvalidOperation))
}
