package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
		closed   bool
		conflict bool
	}{
		{"not found", ErrNotFound, true, false, false},
		{"wrapped not found", fmt.Errorf("load column 1: %w", ErrNotFound), true, false, false},
		{"closed", fmt.Errorf("get: %w", ErrClosed), false, true, false},
		{"conflict", fmt.Errorf("commit: %w", ErrTransactionConflict), false, false, true},
		{"discarded", ErrTransactionDiscarded, false, false, false},
		{"nil", nil, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.closed, IsClosed(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	for _, err := range []error{
		ErrNotFound, ErrEmptyKey, ErrClosed, ErrReadOnly, ErrInvalidConfig,
		ErrTransactionConflict, ErrTransactionTooLarge, ErrTransactionDiscarded, ErrBatchClosed,
	} {
		assert.Regexp(t, `^engine: `, err.Error())
	}
}
