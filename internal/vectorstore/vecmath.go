package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"ragapi/internal/domain"
)

// SquaredL2 is the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}

// EncodeVector encodes float32 values as a little-endian BLOB.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// CheckDimension returns a wrapped domain.ErrDimensionMismatch when any
// vector differs from want. want <= 0 means the collection is still empty and
// the first vector sets the dimension.
func CheckDimension(want int, records []Record) (int, error) {
	for _, r := range records {
		if len(r.Vector) == 0 {
			return want, fmt.Errorf("%w: empty embedding for %s", domain.ErrDimensionMismatch, r.Document.ID)
		}
		if want <= 0 {
			want = len(r.Vector)
			continue
		}
		if len(r.Vector) != want {
			return want, fmt.Errorf("%w: collection expecting embedding with dimension of %d, got %d",
				domain.ErrDimensionMismatch, want, len(r.Vector))
		}
	}
	return want, nil
}

// SortMatches orders matches by ascending distance, keeping insertion order
// for ties, and truncates to topK.
func SortMatches(matches []domain.Match, topK int) []domain.Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if topK > 0 && topK < len(matches) {
		matches = matches[:topK]
	}
	return matches
}
