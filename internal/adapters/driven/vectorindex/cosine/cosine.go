// Package cosine holds the brute-force scoring shared by the in-process
// vector indexes.
package cosine

import (
	"math"
	"sort"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Distance returns 1 - cosine similarity. Vectors of different lengths, or
// with zero norm, are maximally dissimilar at distance 1.
func Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Nearest sorts matches by ascending distance, breaking ties by id, and
// keeps at most k.
func Nearest(matches []domain.VectorMatch, k int) []domain.VectorMatch {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
