package embedding

import (
	"context"
	"crypto/sha256"
	"math"
	"strconv"
	"strings"
)

// LocalHashProvider derives a fixed-dimension vector from sha256 digests of
// the input. It is deterministic, needs no network access, and serves both as
// the offline provider and as the quota fallback. The vectors carry no real
// semantics; they only make similarity ranking stable and reproducible.
type LocalHashProvider struct {
	dims int
}

const (
	localHashDims     = 256
	localHashModelKey = "localhash:v1"
)

func NewLocalHash() *LocalHashProvider {
	return &LocalHashProvider{dims: localHashDims}
}

func (p *LocalHashProvider) ModelKey() string {
	return localHashModelKey
}

func (p *LocalHashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return p.hashVector(text), nil
}

func (p *LocalHashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.hashVector(text)
	}
	return out, nil
}

// hashVector fills the vector from successive sha256("<counter>|<input>")
// digests, maps each byte into [-0.5, 0.5] and L2-normalizes the result.
func (p *LocalHashProvider) hashVector(input string) []float32 {
	vec := make([]float32, p.dims)
	filled := 0

	for counter := 0; filled < p.dims; counter++ {
		h := sha256.New()
		h.Write([]byte(strconv.Itoa(counter)))
		h.Write([]byte("|"))
		h.Write([]byte(input))
		for _, b := range h.Sum(nil) {
			if filled >= p.dims {
				break
			}
			vec[filled] = float32(b)/255 - 0.5
			filled++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return vec
}
