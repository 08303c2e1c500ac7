package distributions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{
			name:     "group id out of range",
			err:      &GroupIDError{GroupID: 5, Len: 3},
			sentinel: ErrOutOfRange,
		},
		{
			name:     "value outside support",
			err:      &SupportError{Value: -1, Support: "{0, 1}"},
			sentinel: ErrInvalidArgument,
		},
		{
			name:     "group model mismatch",
			err:      &MismatchError{Want: "bb.Group", Got: "dd.Group"},
			sentinel: ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
