package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{name: "int", v: Int(42), kind: KindInt},
		{name: "float", v: Float(1.5), kind: KindFloat},
		{name: "list", v: List(Int(1), Int(2)), kind: KindList},
		{name: "map", v: Map(map[string]Value{"a": Int(1)}), kind: KindMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.v.Kind())
			assert.True(t, tt.v.IsValid())
		})
	}
	assert.False(t, Value{}.IsValid())
}

func TestAsInt(t *testing.T) {
	n, err := Int(7).AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = Float(7.0).AsInt()
	assert.Error(t, err, "floats must not silently narrow")

	_, err = List().AsInt()
	assert.Error(t, err)
}

func TestAsFloatWidensInt(t *testing.T) {
	f, err := Float(2.5).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	f, err = Int(3).AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	_, err = Map(nil).AsFloat()
	assert.Error(t, err)
}

func TestFieldAccess(t *testing.T) {
	m := Map(map[string]Value{
		"alpha": Float(0.5),
		"count": Int(3),
	})

	v, ok := m.Field("alpha")
	require.True(t, ok)
	f, err := v.AsFloat()
	require.NoError(t, err)
	assert.Equal(t, 0.5, f)

	_, ok = m.Field("missing")
	assert.False(t, ok)

	_, err = m.MustField("missing")
	assert.Error(t, err)

	_, err = Int(1).MustField("alpha")
	assert.Error(t, err, "field access on non-map")

	assert.Equal(t, []string{"alpha", "count"}, m.Keys())
}

func TestSlices(t *testing.T) {
	ints, err := IntList(1, 2, 3).AsIntSlice()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ints)

	floats, err := FloatList(0.5, 1.5).AsFloatSlice()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, floats)

	_, err = List(Int(1), Float(2.0)).AsIntSlice()
	assert.Error(t, err, "mixed list is not an int slice")
}

func TestEqual(t *testing.T) {
	a := Map(map[string]Value{
		"counts": IntList(1, 2, 3),
		"mean":   Float(0.25),
	})
	assert.True(t, a.Equal(a.Clone()))

	b := Map(map[string]Value{
		"counts": IntList(1, 2, 4),
		"mean":   Float(0.25),
	})
	assert.False(t, a.Equal(b))

	assert.False(t, Int(1).Equal(Float(1.0)), "int and float dumps are distinct")
}

func TestCloneIsDeep(t *testing.T) {
	orig := Map(map[string]Value{"xs": IntList(1, 2)})
	clone := orig.Clone()

	list, err := clone.MustField("xs")
	require.NoError(t, err)
	items, err := list.AsList()
	require.NoError(t, err)
	items[0] = Int(99)

	assert.True(t, orig.Equal(Map(map[string]Value{"xs": IntList(1, 2)})))
}

func TestString(t *testing.T) {
	s := Map(map[string]Value{"a": List(Int(1), Float(2.5))}).String()
	assert.Contains(t, s, "a")
	assert.Contains(t, s, "1")
	assert.Contains(t, s, "2.5")
}
