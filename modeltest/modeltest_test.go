package modeltest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/posterior/distributions/dump"
)

func TestCloseValueFloatTolerance(t *testing.T) {
	// A merge of values summing to zero leaves a cancellation residue; the
	// absolute floor must accept it against an exact zero.
	assert.True(t, closeFloat(0, -2.1587669923266933e-17))
	assert.True(t, closeFloat(-2.1587669923266933e-17, 0))

	assert.True(t, closeFloat(42.5, 42.5+1e-10))
	assert.False(t, closeFloat(42.5, 42.5001))
	assert.False(t, closeFloat(0, 1e-9))
}

func TestCloseValueDumps(t *testing.T) {
	a := dump.Map(map[string]dump.Value{
		"count":                dump.Int(9),
		"count_times_variance": dump.Float(42.5),
		"mean":                 dump.Float(0),
	})
	b := dump.Map(map[string]dump.Value{
		"count":                dump.Int(9),
		"count_times_variance": dump.Float(42.5),
		"mean":                 dump.Float(-2.1587669923266933e-17),
	})
	assert.True(t, closeValue(a, b))

	c := dump.Map(map[string]dump.Value{
		"count":                dump.Int(8),
		"count_times_variance": dump.Float(42.5),
		"mean":                 dump.Float(0),
	})
	assert.False(t, closeValue(a, c))

	// Int and float leaves compare numerically.
	assert.True(t, closeValue(dump.Int(3), dump.Float(3)))
	assert.False(t, closeValue(dump.Int(3), dump.Float(3.5)))
}
