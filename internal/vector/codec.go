package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const floatWidth = 4

var (
	ErrEncoding          = errors.New("invalid embedding encoding")
	ErrEmptyVector       = errors.New("empty vector")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// BytesToVector decodes little-endian IEEE-754 float32 values in order.
func BytesToVector(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrEncoding)
	}
	if len(b)%floatWidth != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrEncoding, len(b), floatWidth)
	}
	out := make([]float32, len(b)/floatWidth)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*floatWidth:]))
	}
	return out, nil
}

func VectorToBytes(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, ErrEmptyVector)
	}
	buf := make([]byte, len(v)*floatWidth)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*floatWidth:], math.Float32bits(f))
	}
	return buf, nil
}

// Finite reports whether every component of v is a real number.
func Finite(v []float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}

// CosineSimilarity returns 0 when either vector has zero magnitude. NaN or
// infinite components are an encoding error, so the result is always in
// [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if !isFinite(dot) || !isFinite(normA) || !isFinite(normB) {
		return 0, fmt.Errorf("%w: non-finite component", ErrEncoding)
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim)), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
