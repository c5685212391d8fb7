// Modul: sample.go
// Beschreibung: Token-Sampling aus Logits: Temperatur, Top-K, Top-P,
// benannt nach den Parametern des urspruenglichen C++-Samplers
// (SamplingParams in llama_sampling.go), hier als reine Go-Implementierung
// ohne C-Abhaengigkeit.

package generate

import (
	"math"
	"math/rand"
	"sort"
)

// SamplingParams configures next-token selection. The zero value is
// greedy (argmax) decoding.
type SamplingParams struct {
	Temp float32
	TopK int
	TopP float32
	Seed uint32
}

// Sampler selects the next token id from a row of logits.
type Sampler struct {
	params SamplingParams
	rng    *rand.Rand
}

// NewSampler builds a Sampler from the given parameters.
func NewSampler(params SamplingParams) *Sampler {
	seed := int64(params.Seed)
	if seed == 0 {
		seed = 1
	}
	return &Sampler{params: params, rng: rand.New(rand.NewSource(seed))}
}

type candidate struct {
	id    int32
	logit float32
}

// Sample returns the chosen token id for one row of vocabulary logits.
func (s *Sampler) Sample(logits []float32) int32 {
	if s.params.Temp <= 0 {
		return argmax(logits)
	}

	candidates := make([]candidate, len(logits))
	for i, l := range logits {
		candidates[i] = candidate{id: int32(i), logit: l / s.params.Temp}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].logit > candidates[j].logit })

	if s.params.TopK > 0 && s.params.TopK < len(candidates) {
		candidates = candidates[:s.params.TopK]
	}

	probs := softmax(candidates)

	if s.params.TopP > 0 && s.params.TopP < 1 {
		candidates, probs = topP(candidates, probs, s.params.TopP)
	}

	return weightedChoice(s.rng, candidates, probs)
}

func argmax(logits []float32) int32 {
	best := 0
	for i, l := range logits {
		if l > logits[best] {
			best = i
		}
	}
	return int32(best)
}

func softmax(candidates []candidate) []float32 {
	maxLogit := candidates[0].logit
	for _, c := range candidates {
		if c.logit > maxLogit {
			maxLogit = c.logit
		}
	}

	probs := make([]float32, len(candidates))
	var sum float32
	for i, c := range candidates {
		p := float32(math.Exp(float64(c.logit - maxLogit)))
		probs[i] = p
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func topP(candidates []candidate, probs []float32, p float32) ([]candidate, []float32) {
	var cum float32
	for i, prob := range probs {
		cum += prob
		if cum >= p {
			return candidates[:i+1], probs[:i+1]
		}
	}
	return candidates, probs
}

func weightedChoice(rng *rand.Rand, candidates []candidate, probs []float32) int32 {
	var sum float32
	for _, p := range probs {
		sum += p
	}

	target := rng.Float32() * sum
	var cum float32
	for i, p := range probs {
		cum += p
		if cum >= target {
			return candidates[i].id
		}
	}
	return candidates[len(candidates)-1].id
}
