package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAreOrderedAndReadable(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])

	body, err := Read(names[0])
	require.NoError(t, err)
	assert.Contains(t, body, "CREATE TABLE IF NOT EXISTS phone_numbers")
	assert.Contains(t, body, "CREATE TABLE IF NOT EXISTS ledger_transactions")
}
