package scraper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"Plain error", errors.New("boom"), KindTransient},
		{"Typed wrong url", newError(KindWrongURL, "op", nil), KindWrongURL},
		{"Wrapped wrong region", fmt.Errorf("outer: %w", newError(KindWrongRegion, "op", errors.New("x"))), KindWrongRegion},
		{"Sentinel only", fmt.Errorf("ctx: %w", ErrFailedParse), KindExtractionFailed},
		{"Typed extraction", newError(KindExtractionFailed, "op", errors.New("missing price")), KindExtractionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestKindFatal(t *testing.T) {
	assert.True(t, KindWrongURL.Fatal())
	assert.True(t, KindWrongRegion.Fatal())
	assert.False(t, KindExtractionFailed.Fatal())
	assert.False(t, KindTransient.Fatal())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("selector timeout")
	err := newError(KindWrongURL, "check page", cause)

	assert.True(t, errors.Is(err, ErrWrongURL))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrWrongRegion))
	assert.Equal(t, "check page: wrong product URL: selector timeout", err.Error())

	transient := newError(KindTransient, "launch", cause)
	assert.True(t, errors.Is(transient, cause))
	assert.Equal(t, "launch: selector timeout", transient.Error())
}
