package orders

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusCreated, StatusPaid))
	assert.True(t, CanTransition(StatusCreated, StatusCancelled))
	assert.False(t, CanTransition(StatusPaid, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPaid))
	assert.False(t, CanTransition(StatusCreated, StatusCreated))
	assert.False(t, CanTransition("SHIPPED", StatusPaid))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusCreated.Terminal())
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, Status("UNKNOWN").Terminal())
}

func TestAssertMutable(t *testing.T) {
	assert.NoError(t, AssertMutable(&Order{ID: "o1", Status: StatusCreated}))

	err := AssertMutable(&Order{ID: "o1", Status: StatusCancelled})
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.False(t, errors.Is(err, ErrAlreadyPaid))
	assert.EqualError(t, err, "operation cannot be performed: order [o1] is already cancelled")

	err = AssertMutable(&Order{ID: "o2", Status: StatusPaid})
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.False(t, errors.Is(err, ErrAlreadyCancelled))
	assert.EqualError(t, err, "operation cannot be performed: order [o2] is already paid")
}
