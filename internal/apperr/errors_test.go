package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsMatchByType(t *testing.T) {
	err := fmt.Errorf("move card: %w", NotFound("card not found"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, TypeNotFound, TypeOf(err))

	assert.ErrorIs(t, Conflict("stage has cards", "2 cards"), ErrConflict)
	assert.ErrorIs(t, Validation("bad"), ErrValidation)
}

func TestPersistenceWrapsDriverErrors(t *testing.T) {
	assert.NoError(t, Persistence("insert", nil))

	err := Persistence("insert card", sql.ErrConnDone)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "insert card")

	typed := Validation("title is required")
	assert.Same(t, typed, Persistence("insert card", typed))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "conflict: stage has cards (move them)", Conflict("stage has cards", "move them").Error())
	assert.Equal(t, "", string(TypeOf(errors.New("plain"))))
}
