package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAreOrdered(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_orders.sql", "0002_payment_attempts.sql", "0003_outbox.sql"}, names)

	for _, name := range names {
		sql, err := Read(name)
		require.NoError(t, err)
		assert.NotEmpty(t, sql, name)
	}
}
