package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyDataSourceReachableStore(t *testing.T) {
	require.NoError(t, VerifyDataSource("sqlite3", ":memory:"))
}

func TestVerifyDataSourceUnknownDriver(t *testing.T) {
	assert.Error(t, VerifyDataSource("no-such-driver", "irrelevant"))
}
