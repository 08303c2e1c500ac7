package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posterior/distributions/codec"
	"github.com/posterior/distributions/dump"
)

func TestFamilies(t *testing.T) {
	assert.Equal(t, []string{"bb", "dd", "dpd", "gp", "nich"}, Families())
}

func TestEntriesPerFamily(t *testing.T) {
	for _, name := range Families() {
		entries := Family(name)
		require.NotEmpty(t, entries, name)
		for _, e := range entries {
			assert.Equal(t, name, e.Family)
			assert.Equal(t, dump.KindMap, e.Model.Kind())
			assert.GreaterOrEqual(t, e.Values.Len(), 7,
				"%s fixture needs more example values", name)
		}
	}
	assert.Empty(t, Family("unknown"))
}

func TestEntriesAreCopies(t *testing.T) {
	a := Entries()
	b := Entries()
	require.NotEmpty(t, a)
	a[0] = Entry{}
	assert.NotEqual(t, a[0].Family, b[0].Family)
}

func TestCatalogRoundTripsThroughWire(t *testing.T) {
	catalog := Dump()
	data, err := codec.ToWire(codec.Default, catalog, codec.WithCompression())
	require.NoError(t, err)

	got, err := codec.FromWire(data)
	require.NoError(t, err)
	assert.True(t, catalog.Equal(got), "catalog must survive the wire format")
}
