package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfUnwrapsWrappedErrors(t *testing.T) {
	base := NotFound("order", 7)
	wrapped := fmt.Errorf("loading: %w", base)

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "query failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "query failed")
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("order", 1)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInput("name", "empty")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("version mismatch")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(UnknownState(1, 2)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestUnknownStateMessage(t *testing.T) {
	err := UnknownState(3, 9)
	assert.Contains(t, err.Error(), "department 3")
	assert.Contains(t, err.Error(), "state 9")
}
