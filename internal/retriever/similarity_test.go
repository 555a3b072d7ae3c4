package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine_SelfSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0.01}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosine_Orthogonal(t *testing.T) {
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosine_Opposite(t *testing.T) {
	assert.InDelta(t, -1.0, Cosine([]float32{1, 2}, []float32{-1, -2}), 1e-9)
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{0.5, 0.1, -0.7}
	b := []float32{-0.2, 0.9, 0.4}
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
}

func TestCosine_DimensionMismatch(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{1, 2, 3}, []float32{1, 2}))
}

func TestCosine_ZeroMagnitude(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float32{1, 1}, []float32{0, 0}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
}

func TestCosine_ScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	scaled := []float32{10, 20, 30}
	assert.InDelta(t, 1.0, Cosine(a, scaled), 1e-6)
}
