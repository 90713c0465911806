package storage

import (
	"encoding/binary"
	"math"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/apperr"
)

// EncodeVector packs v as little-endian IEEE-754 float32 values, four bytes
// per component. A nil or empty vector encodes to nil.
func EncodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector. It returns the exact values
// that were encoded.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	if len(buf)%4 != 0 {
		return nil, apperr.Wrap(apperr.ErrInvalidArgument, "embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// checkVector rejects non-finite components and, when dims > 0, a wrong
// dimensionality.
func checkVector(v []float32, dims int) error {
	if dims > 0 && len(v) != dims {
		return apperr.Wrap(apperr.ErrInvalidArgument, "embedding has %d dimensions, want %d", len(v), dims)
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return apperr.Wrap(apperr.ErrInvalidArgument, "embedding component %d is not finite", i)
		}
	}
	return nil
}

// cosineSimilarity returns 1 - cosine distance. ok is false when the lengths
// differ or either vector has zero norm.
func cosineSimilarity(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
