package vector

import (
	"fmt"
	"math"
	"sort"

	"supportbot/internal/models"
)

// DefaultTopK is used when callers pass a non-positive k.
const DefaultTopK = 3

// DimensionMismatchError reports a stored vector whose length differs from
// the query vector.
type DimensionMismatchError struct {
	ChunkID string
	Want    int
	Got     int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("chunk %s has %d dimensions, query has %d", e.ChunkID, e.Got, e.Want)
}

// Cosine returns q·c / (‖q‖‖c‖). A zero-norm operand scores 0.
// Callers must pass equal-length vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every chunk against query and returns the best topK in
// descending score order. Equal scores keep their input order.
func Rank(query []float32, chunks []models.StoredChunk, topK int) ([]models.RankedChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	ranked := make([]models.RankedChunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != len(query) {
			return nil, &DimensionMismatchError{ChunkID: c.ChunkID, Want: len(query), Got: len(c.Embedding)}
		}
		ranked = append(ranked, models.RankedChunk{
			ChunkID:      c.ChunkID,
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Text:         c.Text,
			Score:        Cosine(query, c.Embedding),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}
