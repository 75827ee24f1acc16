package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	s, err := FromString(" Sales ")
	require.NoError(t, err)
	assert.Equal(t, Sales, s)
	assert.Equal(t, "sales_events", s.TableName())

	_, err = FromString("mints")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sales, transfers, listings")
}

func TestAllSourcesHaveCollectionFilter(t *testing.T) {
	for _, s := range All() {
		col, ok := s.Column("collection")
		require.True(t, ok, s)
		assert.True(t, col.Filterable)
		assert.Equal(t, TimestampField, s.TimestampField())
	}
}

func TestValidateFilters(t *testing.T) {
	require.NoError(t, Sales.ValidateFilters("ts", map[string]string{"collection": "x", "buyer": "addr1"}))
	require.NoError(t, Transfers.ValidateFilters("", nil))

	assert.Error(t, Sales.ValidateFilters("created_at", nil))
	assert.Error(t, Sales.ValidateFilters("ts", map[string]string{"price": "1"}))
	assert.Error(t, Sales.ValidateFilters("ts", map[string]string{"1=1; --": "x"}))
	assert.Error(t, Source("mints").ValidateFilters("ts", nil))
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0] = "mutated"
	assert.Equal(t, Sales, All()[0])
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(map[string]string{"c": "", "a": "", "b": ""}))
}
