package gamification

import (
	"errors"
	"fmt"
	"math"
)

// Level is one row of the threshold table.
type Level struct {
	Number    int
	MinPoints int
}

// LevelTable maps cumulative points to levels. It is immutable once built.
type LevelTable struct {
	levels []Level
}

var defaultLevels = []Level{
	{1, 0},
	{2, 100},
	{3, 250},
	{4, 500},
	{5, 1000},
	{6, 2000},
	{7, 3500},
	{8, 5500},
	{9, 8000},
	{10, 12000},
}

// DefaultLevels returns the standard ten-level table.
func DefaultLevels() *LevelTable {
	t, err := NewLevelTable(defaultLevels)
	if err != nil {
		panic(err)
	}
	return t
}

// NewLevelTable validates levels: numbered 1..n in order, level 1 at zero
// points and thresholds strictly increasing.
func NewLevelTable(levels []Level) (*LevelTable, error) {
	if len(levels) == 0 {
		return nil, errors.New("level table is empty")
	}
	if levels[0].Number != 1 || levels[0].MinPoints != 0 {
		return nil, errors.New("level 1 must start at 0 points")
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Number != i+1 {
			return nil, fmt.Errorf("level %d out of order at position %d", levels[i].Number, i)
		}
		if levels[i].MinPoints <= levels[i-1].MinPoints {
			return nil, fmt.Errorf("threshold of level %d must exceed level %d", levels[i].Number, levels[i-1].Number)
		}
	}
	out := make([]Level, len(levels))
	copy(out, levels)
	return &LevelTable{levels: out}, nil
}

// Levels returns a copy of the table rows in ascending order.
func (t *LevelTable) Levels() []Level {
	out := make([]Level, len(t.levels))
	copy(out, t.levels)
	return out
}

// MaxLevel is the highest reachable level.
func (t *LevelTable) MaxLevel() int {
	return t.levels[len(t.levels)-1].Number
}

// LevelFor returns the highest level whose threshold is <= points.
func (t *LevelTable) LevelFor(points int) int {
	return t.levels[t.index(points)].Number
}

// ProgressPercent is how far points are between the current level and the
// next one, rounded to the nearest integer. 100 at max level.
func (t *LevelTable) ProgressPercent(points int) int {
	i := t.index(points)
	if i == len(t.levels)-1 {
		return 100
	}
	if points < 0 {
		points = 0
	}
	cur, next := t.levels[i].MinPoints, t.levels[i+1].MinPoints
	return int(math.Round(float64(points-cur) / float64(next-cur) * 100))
}

// PointsToNextLevel is 0 at max level.
func (t *LevelTable) PointsToNextLevel(points int) int {
	i := t.index(points)
	if i == len(t.levels)-1 {
		return 0
	}
	if points < 0 {
		points = 0
	}
	return t.levels[i+1].MinPoints - points
}

func (t *LevelTable) index(points int) int {
	if points < 0 {
		points = 0
	}
	i := 0
	for j, l := range t.levels {
		if l.MinPoints > points {
			break
		}
		i = j
	}
	return i
}
