package generate

import "testing"

func TestSampleGreedyIsArgmax(t *testing.T) {
	s := NewSampler(SamplingParams{})
	logits := []float32{0.1, 5.0, -2.0, 3.0}

	got := s.Sample(logits)
	if got != 1 {
		t.Fatalf("Sample() = %d, want 1 (argmax)", got)
	}
}

func TestSampleTopKRestrictsToBestCandidate(t *testing.T) {
	s := NewSampler(SamplingParams{Temp: 1, TopK: 1, Seed: 42})
	logits := []float32{0, 10, 0, 0}

	for i := 0; i < 10; i++ {
		if got := s.Sample(logits); got != 1 {
			t.Fatalf("Sample() = %d, want 1 (only candidate left after top-k=1)", got)
		}
	}
}

func TestSampleDeterministicWithSameSeed(t *testing.T) {
	logits := []float32{1, 2, 3, 0.5, 4, 2.2}

	a := NewSampler(SamplingParams{Temp: 0.8, TopK: 4, TopP: 0.9, Seed: 7})
	b := NewSampler(SamplingParams{Temp: 0.8, TopK: 4, TopP: 0.9, Seed: 7})

	for i := 0; i < 20; i++ {
		if got, want := a.Sample(logits), b.Sample(logits); got != want {
			t.Fatalf("iteration %d: samplers with identical seed diverged: %d != %d", i, got, want)
		}
	}
}

func TestArgmaxPicksFirstOnTie(t *testing.T) {
	logits := []float32{3, 3, 1}
	if got := argmax(logits); got != 0 {
		t.Fatalf("argmax() = %d, want 0", got)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	candidates := []candidate{{0, 1}, {1, 2}, {2, 3}}
	probs := softmax(candidates)

	var sum float32
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("probability %v out of [0,1]", p)
		}
		sum += p
	}
	if diff := sum - 1; diff > 1e-4 || diff < -1e-4 {
		t.Errorf("sum(probs) = %v, want ~1", sum)
	}
}

func TestTopPTruncatesAtCumulativeMass(t *testing.T) {
	candidates := []candidate{{0, 0}, {1, 0}, {2, 0}}
	probs := []float32{0.6, 0.3, 0.1}

	kept, keptProbs := topP(candidates, probs, 0.8)
	if len(kept) != 2 {
		t.Fatalf("len(kept) = %d, want 2", len(kept))
	}
	if len(keptProbs) != 2 {
		t.Fatalf("len(keptProbs) = %d, want 2", len(keptProbs))
	}
}

func TestWeightedChoiceOnlyReturnsKnownIDs(t *testing.T) {
	s := NewSampler(SamplingParams{Temp: 1, Seed: 3})
	candidates := []candidate{{10, 0}, {20, 0}, {30, 0}}
	probs := []float32{0.2, 0.3, 0.5}

	seen := map[int32]bool{}
	for i := 0; i < 50; i++ {
		id := weightedChoice(s.rng, candidates, probs)
		seen[id] = true
	}
	for id := range seen {
		if id != 10 && id != 20 && id != 30 {
			t.Errorf("weightedChoice returned unknown id %d", id)
		}
	}
}
