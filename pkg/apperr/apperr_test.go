package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"tagged not found", E(NotFound, "cart not found"), NotFound},
		{"tagged invalid id", E(InvalidID, "bad id"), InvalidID},
		{"wrapped once", fmt.Errorf("get cart: %w", E(NotFound, "cart not found")), NotFound},
		{"wrapped twice", fmt.Errorf("handler: %w", fmt.Errorf("service: %w", E(Forbidden, ""))), Forbidden},
		{"plain error", errors.New("boom"), Internal},
		{"wrap with cause", Wrap(Internal, "save cart", errors.New("io timeout")), Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, Status(E(NotFound, "")))
	assert.Equal(t, http.StatusBadRequest, Status(E(InvalidID, "")))
	assert.Equal(t, http.StatusBadRequest, Status(E(BadRequest, "")))
	assert.Equal(t, http.StatusUnauthorized, Status(E(Unauthorized, "")))
	assert.Equal(t, http.StatusForbidden, Status(E(Forbidden, "")))
	assert.Equal(t, http.StatusConflict, Status(E(Conflict, "")))
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("anything")))
}

func TestIsMatchesOnKind(t *testing.T) {
	err := fmt.Errorf("finalize purchase: %w", E(NotFound, "cart not found"))
	assert.True(t, errors.Is(err, E(NotFound, "different message")))
	assert.False(t, errors.Is(err, E(InvalidID, "")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(Internal, "decrement stock", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "decrement stock", err.Error())
}
