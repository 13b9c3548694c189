package serviceerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errCause = errors.New("disk on fire")

func TestErrorCodeAndUnwrap(t *testing.T) {
	err := New("applications.create", "insert_failed", errCause)

	assert.Equal(t, "applications.create.insert_failed", CodeOf(err))
	assert.ErrorIs(t, err, errCause)
	assert.EqualError(t, err, "applications.create.insert_failed: disk on fire")
}

func TestCodeOfWrappedError(t *testing.T) {
	err := fmt.Errorf("handler: %w", New("accounts.sign_in", "query_failed", nil))

	assert.Equal(t, "accounts.sign_in.query_failed", CodeOf(err))
	assert.Empty(t, CodeOf(errCause), "plain errors carry no code")
	assert.EqualError(t, New("op", "reason", nil), "op.reason")
}
