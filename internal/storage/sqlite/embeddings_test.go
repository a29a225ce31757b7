// ABOUTME: Tests for vector encoding and cosine similarity
// ABOUTME: Verifies BLOB round trips and similarity edge cases
package sqlite

import (
	"math"
	"testing"
)

func TestVectorBlobRoundTrip(t *testing.T) {
	vector := []float32{0, 1.5, -2.25, float32(math.Pi)}

	got, err := blobToVector(vectorToBlob(vector))
	if err != nil {
		t.Fatalf("blobToVector() error = %v", err)
	}
	if len(got) != len(vector) {
		t.Fatalf("len = %d, want %d", len(got), len(vector))
	}
	for i := range vector {
		if got[i] != vector[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], vector[i])
		}
	}
}

func TestBlobToVectorRejectsTruncatedBlob(t *testing.T) {
	if _, err := blobToVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for 3-byte blob")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1.0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}
