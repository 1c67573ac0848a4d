package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid([]string{
		"...",
		".#.",
		"...",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, g.Width())
	assert.Equal(t, 3, g.Height())
	assert.True(t, g.IsObstacle(Position{Row: 1, Col: 1}))
	assert.False(t, g.IsObstacle(Position{Row: 0, Col: 0}))
	assert.True(t, g.IsObstacle(Position{Row: -1, Col: 0}), "off-map counts as obstacle")
	assert.Equal(t, 8, g.OpenCells())

	_, err = ParseGrid([]string{"...", ".."}, nil)
	assert.Error(t, err)
}

func TestGrid_Move(t *testing.T) {
	g, err := ParseGrid([]string{
		"...",
		".#.",
		"...",
	}, nil)
	require.NoError(t, err)

	// 1. Обычный шаг
	next, err := g.Move(Position{Row: 0, Col: 0}, DirE)
	require.NoError(t, err)
	assert.Equal(t, Position{Row: 0, Col: 1}, next)

	// 2. Шаг в стену
	_, err = g.Move(Position{Row: 0, Col: 0}, DirSE)
	assert.True(t, errors.Is(err, ErrBlocked), "got %v", err)

	// 3. Шаг за карту
	_, err = g.Move(Position{Row: 0, Col: 0}, DirN)
	assert.True(t, errors.Is(err, ErrOutOfBounds), "got %v", err)
}

func TestGrid_PositionOnObstacleIsAllowed(t *testing.T) {
	g, err := ParseGrid([]string{"#."}, nil)
	require.NoError(t, err)

	p, err := g.Position(0, 0)
	require.NoError(t, err)
	assert.True(t, g.IsObstacle(p))

	_, err = g.Position(0, 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestGrid_WithObstaclesDoesNotMutate(t *testing.T) {
	g, err := NewGrid(4, 4, nil, nil)
	require.NoError(t, err)

	blocked := g.WithObstacles(Position{Row: 1, Col: 1}, Position{Row: 9, Col: 9})
	assert.True(t, blocked.IsObstacle(Position{Row: 1, Col: 1}))
	assert.False(t, g.IsObstacle(Position{Row: 1, Col: 1}))
}

func TestNewGrid_Validation(t *testing.T) {
	_, err := NewGrid(0, 3, nil, nil)
	assert.Error(t, err)

	_, err = NewGrid(2, 2, make([]bool, 3), nil)
	assert.Error(t, err)
}

func TestGrid_Fingerprint(t *testing.T) {
	a, err := ParseGrid([]string{"..#", "..."}, nil)
	require.NoError(t, err)
	b, err := ParseGrid([]string{"..#", "..."}, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "same layout, same fingerprint")

	moved, err := ParseGrid([]string{"...", "..#"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), moved.Fingerprint())

	// Та же карта препятствий, но другие размеры
	wide, err := NewGrid(6, 1, nil, nil)
	require.NoError(t, err)
	tall, err := NewGrid(1, 6, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, wide.Fingerprint(), tall.Fingerprint())

	walled := a.WithObstacles(Position{Row: 1, Col: 1})
	assert.NotEqual(t, a.Fingerprint(), walled.Fingerprint())
	assert.Equal(t, a.Fingerprint(), a.WithObstacles(Position{Row: 0, Col: 2}).Fingerprint())
}
