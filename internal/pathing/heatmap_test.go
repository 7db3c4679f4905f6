package pathing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeatMap(t *testing.T) {
	h := NewHeatMap(10, 10, 2)
	sq := Square{X: 3, Z: 3}

	h.Deposit(sq, 5, 1)
	assert.InDelta(t, 5, h.Cost(sq, 2), 0)
	assert.InDelta(t, 5, h.Cost(Square{X: 2, Z: 2}, 2), 0, "cells cover scale x scale squares")
	assert.Zero(t, h.Cost(sq, 1), "owner pays nothing")
	assert.Zero(t, h.Cost(Square{X: 5, Z: 5}, 2))

	// A weaker deposit does not replace a stronger one.
	h.Deposit(sq, 3, 2)
	assert.Zero(t, h.Cost(sq, 1))

	h.Update()
	h.Update()
	assert.InDelta(t, 3, h.Cost(sq, 2), 0)

	// Once decayed, a new deposit wins.
	h.Deposit(sq, 4, 2)
	assert.InDelta(t, 4, h.Cost(sq, 1), 0)
	assert.Zero(t, h.Cost(sq, 2))

	for range 10 {
		h.Update()
	}
	assert.Zero(t, h.Cost(sq, 1), "decay never goes negative")
}

func TestHeatMapOutside(t *testing.T) {
	h := NewHeatMap(5, 5, 2)
	h.Deposit(Square{X: -1, Z: 0}, 9, 1)
	h.Deposit(Square{X: 10, Z: 0}, 9, 1)
	assert.Zero(t, h.Cost(Square{X: -1, Z: 0}, 2))
	assert.Zero(t, h.Cost(Square{X: 10, Z: 0}, 2))

	// The last partial cell still exists.
	h.Deposit(Square{X: 4, Z: 4}, 2, 1)
	assert.InDelta(t, 2, h.Cost(Square{X: 4, Z: 4}, 2), 0)
}
