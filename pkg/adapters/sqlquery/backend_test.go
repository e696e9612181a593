package sqlquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnihelp/switchboard/pkg/domain"
)

func TestValidateReadOnly_AcceptsSelects(t *testing.T) {
	ok := []string{
		"SELECT * FROM orders WHERE id = 'A1'",
		"select status, eta from orders limit 5;",
		"WITH recent AS (SELECT * FROM orders ORDER BY created_at DESC LIMIT 10) SELECT * FROM recent",
		"  SELECT count(*) FROM products -- total products",
	}
	for _, sql := range ok {
		assert.NoError(t, ValidateReadOnly(sql), sql)
	}
}

func TestValidateReadOnly_RejectsMutationsAndCompounds(t *testing.T) {
	cases := []struct {
		sql    string
		reason string
	}{
		{"DELETE FROM orders", "SELECT or WITH"},
		{"UPDATE orders SET status = 'lost'", "SELECT or WITH"},
		{"DROP TABLE orders", "SELECT or WITH"},
		{"SELECT 1; DELETE FROM orders", "multiple statements"},
		{"WITH x AS (DELETE FROM orders RETURNING *) SELECT * FROM x", "DELETE"},
		{"WITH x AS (UPDATE orders SET s=1 RETURNING *) SELECT 1", "UPDATE"},
		{"", "empty"},
		{"-- just a comment", "empty"},
	}
	for _, tc := range cases {
		err := ValidateReadOnly(tc.sql)
		if assert.Error(t, err, tc.sql) {
			assert.Contains(t, err.Error(), tc.reason, tc.sql)
			assert.True(t, domain.Retryable(err), tc.sql)
		}
	}
}

func TestValidateReadOnly_WordBoundaries(t *testing.T) {
	// Column and table names that merely contain a forbidden verb are fine.
	ok := []string{
		"SELECT updated_at FROM orders",
		"SELECT * FROM deleted_orders_archive",
		"SELECT creates_total FROM daily_stats",
	}
	for _, sql := range ok {
		assert.NoError(t, ValidateReadOnly(sql), sql)
	}
}
