package detector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/facekit/internal/geometry"
)

func cand(x, y, w, h, score float32) Candidate {
	return Candidate{Box: geometry.BoxFromXYWH(x, y, w, h), Score: score}
}

func TestNMSPairwiseIoU(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		var cands []Candidate
		for i := 0; i < 60; i++ {
			cands = append(cands, cand(
				rng.Float32()*200, rng.Float32()*200,
				5+rng.Float32()*60, 5+rng.Float32()*60,
				rng.Float32(),
			))
		}
		thr := 0.2 + rng.Float32()*0.6

		kept := NMS(cands, thr)
		require.NotEmpty(t, kept)
		for i := range kept {
			for j := i + 1; j < len(kept); j++ {
				assert.LessOrEqual(t, geometry.IoU(kept[i].Box, kept[j].Box), thr)
			}
		}

		best := cands[0]
		for _, c := range cands {
			if c.Score > best.Score {
				best = c
			}
		}
		assert.Equal(t, best, kept[0])
	}
}

func TestSuppressOverlap(t *testing.T) {
	sorted := SortByScore([]Candidate{
		cand(0, 0, 10, 10, 0.6),
		cand(1, 0, 10, 10, 0.9),
		cand(50, 50, 10, 10, 0.7),
	})
	picked := Suppress(sorted, 0.5)
	assert.Equal(t, []int{0, 1}, picked)
	assert.Equal(t, float32(0.9), sorted[picked[0]].Score)
	assert.Equal(t, float32(0.7), sorted[picked[1]].Score)
}

func TestSuppressTiesKeepFirst(t *testing.T) {
	a := cand(0, 0, 10, 10, 0.8)
	b := cand(1, 1, 10, 10, 0.8)
	kept := NMS([]Candidate{a, b}, 0.3)
	require.Len(t, kept, 1)
	assert.Equal(t, a, kept[0])
}

func TestSuppressZeroArea(t *testing.T) {
	kept := NMS([]Candidate{
		cand(5, 5, 0, 0, 0.9),
		cand(5, 5, 0, 0, 0.8),
	}, 0.1)
	assert.Len(t, kept, 2)
}

func TestNMSEmpty(t *testing.T) {
	assert.Empty(t, NMS(nil, 0.5))
}
