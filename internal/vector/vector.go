// Package vector implements the storage codec for embedding vectors and
// cosine similarity. SQLite stores vectors as packed little-endian
// float32 blobs; Postgres stores a textual array literal. Both round-trip
// losslessly at single precision.
package vector

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// EncodeBinary packs vec into little-endian float32 bytes.
func EncodeBinary(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeBinary unpacks a little-endian float32 blob.
func DecodeBinary(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, eris.Errorf("vector: blob length %d not a multiple of 4", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return vec, nil
}

// EncodeText renders vec as a bracketed array literal, e.g. "[0.1,0.2]".
func EncodeText(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// DecodeText parses a bracketed array literal back into a vector.
func DecodeText(raw string) ([]float32, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, eris.Errorf("vector: malformed array literal %q", truncate(raw, 32))
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, eris.Wrapf(err, "vector: parse element %d", i)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// Cosine returns the cosine similarity of two equal-length vectors.
// Similarity against a zero-norm vector is 0, never NaN, so downstream
// thresholding stays well-defined.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
