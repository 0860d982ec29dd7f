package mlinference

import "math"

// EmbeddingType selects the scoring function applied to an (h, r, t)
// triple, per spec.md §4.5.
type EmbeddingType string

const (
	TransE   EmbeddingType = "TransE"
	DistMult EmbeddingType = "DistMult"
	ComplEx  EmbeddingType = "ComplEx"
)

// score dispatches to the configured scoring function. h, r, t are
// equal-length embedding rows.
func score(kind EmbeddingType, h, r, t []float32) float32 {
	switch kind {
	case DistMult:
		return scoreDistMult(h, r, t)
	case ComplEx:
		return scoreComplEx(h, r, t)
	default:
		return scoreTransE(h, r, t)
	}
}

// scoreTransE computes -‖h + r - t‖₂: higher is better (closer to 0).
func scoreTransE(h, r, t []float32) float32 {
	var sumSq float64
	for i := range h {
		d := float64(h[i]) + float64(r[i]) - float64(t[i])
		sumSq += d * d
	}
	return float32(-math.Sqrt(sumSq))
}

// scoreDistMult computes Σ h_i · r_i · t_i.
func scoreDistMult(h, r, t []float32) float32 {
	var sum float64
	for i := range h {
		sum += float64(h[i]) * float64(r[i]) * float64(t[i])
	}
	return float32(sum)
}

// scoreComplEx splits the embedding dimension into real/imaginary
// halves and computes Re(<h, r, conj(t)>), the standard ComplEx
// trilinear scoring function.
func scoreComplEx(h, r, t []float32) float32 {
	half := len(h) / 2
	var sum float64
	for i := 0; i < half; i++ {
		hRe, hIm := float64(h[i]), float64(h[half+i])
		rRe, rIm := float64(r[i]), float64(r[half+i])
		tRe, tIm := float64(t[i]), float64(t[half+i]) // conj(t) negates tIm below

		// Re(h * r * conj(t)) expanded over complex multiplication.
		sum += hRe*rRe*tRe + hRe*rIm*tIm + hIm*rRe*tIm - hIm*rIm*tRe
	}
	return float32(sum)
}

// sigmoid maps a real score to (0, 1).
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// normalizedConfidence min-max normalises score within [minScore,
// maxScore] then squashes through a sigmoid, producing the pseudo
// confidence spec.md §4.5 requires for ranked predictions.
func normalizedConfidence(s, minScore, maxScore float32) float64 {
	if maxScore <= minScore {
		return sigmoid(float64(s))
	}
	norm := (float64(s) - float64(minScore)) / (float64(maxScore) - float64(minScore))
	// Centre the normalised value around 0 before the sigmoid so a
	// mid-ranked candidate lands near 0.5 confidence.
	return sigmoid((norm - 0.5) * 4)
}
