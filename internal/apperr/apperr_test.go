package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_Wrapped(t *testing.T) {
	base := New(InUse, "engine.removeScene", "scene %q is on program", "A")
	wrapped := fmt.Errorf("remove scene: %w", base)

	assert.Equal(t, InUse, CodeOf(wrapped))
	assert.True(t, Is(wrapped, InUse))
	assert.False(t, Is(wrapped, NotFound))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Internal, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.False(t, Is(nil, Internal))
}

func TestError_Message(t *testing.T) {
	err := New(DuplicateName, "scenegraph.addScene", "scene %q already exists", "A")
	assert.Equal(t, `scenegraph.addScene: DUPLICATE_NAME: scene "A" already exists`, err.Error())

	cause := errors.New("disk full")
	w := Wrap(StoreTransactionFailed, "store.save", cause)
	assert.Equal(t, "store.save: STORE_TRANSACTION_FAILED: disk full", w.Error())
	assert.ErrorIs(t, w, cause)
}

func TestIsValidation(t *testing.T) {
	assert.True(t, DuplicateName.IsValidation())
	assert.True(t, InvalidTransition.IsValidation())
	assert.True(t, UnsupportedOnPlatform.IsValidation())
	assert.False(t, InUse.IsValidation())
	assert.False(t, Timeout.IsValidation())
}
