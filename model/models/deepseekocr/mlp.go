// Modul: mlp.go
// Beschreibung: Dense- und Mixture-of-Experts-MLPs fuer den Sprachdecoder.
// Das MoE-Gating unterstuetzt sowohl gieriges Top-K als auch das
// gruppenbeschraenkte "noaux_tc"-Verfahren (Korrekturbias, Top-2-Gruppensumme,
// Gruppenauswahl, dann Top-K ueber die ueberlebenden Experten).

package deepseekocr

import (
	"sort"

	"ocr-go-infer/internal/debugpolicy"
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
)

// MLP is implemented by dense and sparse feed-forward blocks.
type MLP interface {
	Forward(ml.Context, ml.Tensor, *Options) ml.Tensor
}

// dense is a plain gate/up/down SwiGLU MLP, used for layers before
// leadingDenseBlockCount and as the shared-expert body in sparse blocks.
type dense struct {
	Gate *nn.Linear `gguf:"ffn_gate"`
	Up   *nn.Linear `gguf:"ffn_up"`
	Down *nn.Linear `gguf:"ffn_down"`
}

func (mlp *dense) Forward(ctx ml.Context, hiddenStates ml.Tensor, opts *Options) ml.Tensor {
	hiddenStates = mlp.Gate.Forward(ctx, hiddenStates).SILU(ctx, mlp.Up.Forward(ctx, hiddenStates))
	return mlp.Down.Forward(ctx, hiddenStates)
}

// sparse is a mixture-of-experts block: shared experts run on every
// token unconditionally, routed experts are selected per token by Gate.
type sparse struct {
	Router       *nn.Linear `gguf:"ffn_gate_inp"`
	Gate         *nn.Linear `gguf:"ffn_gate_exps"`
	Up           *nn.Linear `gguf:"ffn_up_exps"`
	Down         *nn.Linear `gguf:"ffn_down_exps"`
	SharedExpert *dense     `gguf:",suf:_shexp"`
	ExpProbsBias ml.Tensor  `gguf:"exp_probs_b.bias,alt:exp_probs_b"`
}

func (moe *sparse) Forward(ctx ml.Context, hiddenStates ml.Tensor, opts *Options) ml.Tensor {
	sharedExpertResult := moe.SharedExpert.Forward(ctx, hiddenStates, opts)
	if debugpolicy.Get().DisableRoutedExperts {
		return sharedExpertResult
	}

	residual := hiddenStates
	numTokens := hiddenStates.Dim(1)

	routerLogits := moe.Router.Forward(ctx, hiddenStates)

	var scores ml.Tensor
	switch opts.scoring {
	case scoringSigmoid:
		scores = routerLogits.Sigmoid(ctx)
	default:
		scores = routerLogits.Softmax(ctx)
	}

	var bias []float32
	if moe.ExpProbsBias != nil {
		bias = moe.ExpProbsBias.Floats()
	}

	idx, weight := selectExperts(scores.Floats(), bias, numTokens, opts)
	topKIndices := ctx.Input().FromInts(idx, opts.numExpertsUsed, numTokens)
	topKWeights := ctx.Input().FromFloats(weight, 1, opts.numExpertsUsed, numTokens)

	hiddenStates = moe.moe(ctx, residual, topKIndices, topKWeights, opts)
	return hiddenStates.Add(ctx, sharedExpertResult)
}

// moe evaluates the routed experts and accumulates their weighted output,
// identical in shape to deepseek2's fused SwiGLU expert dispatch.
func (moe *sparse) moe(ctx ml.Context, hiddenStates, topKIndices, topKWeights ml.Tensor, opts *Options) ml.Tensor {
	hiddenStates = hiddenStates.Reshape(ctx, hiddenStates.Dim(0), 1, hiddenStates.Dim(1))

	upStates := moe.Up.Weight.MulmatID(ctx, hiddenStates, topKIndices)
	hiddenStates = moe.Gate.Weight.MulmatID(ctx, hiddenStates, topKIndices)
	hiddenStates = hiddenStates.SILU(ctx, upStates)

	experts := moe.Down.Weight.MulmatID(ctx, hiddenStates, topKIndices)
	experts = experts.Mul(ctx, topKWeights)

	nextStates := experts.View(ctx, 0, experts.Dim(0), experts.Stride(2), experts.Dim(2))
	for i := 1; i < opts.numExpertsUsed; i++ {
		nextStates = nextStates.Add(ctx, experts.View(ctx, i*experts.Stride(1), experts.Dim(0), experts.Stride(2), experts.Dim(2)))
	}
	return nextStates
}

// selectExperts computes, for each of numTokens token columns, the
// routed-expert indices and weights. Gating is tiny compared to the
// actual expert matmuls, so it's done directly on the host with plain
// float slices rather than composing it out of generic tensor ops: the
// per-column top-k-of-groups selection has no natural single-tensor-op
// expression, and reading scores back to the host here costs nothing a
// CPU backend wasn't already going to pay computing them.
//
// scores is laid out expert-fastest (ggml dim0 convention): scores[t*E+e].
func selectExperts(scores, bias []float32, numTokens int, opts *Options) (idx []int32, weight []float32) {
	numExperts := opts.numExperts
	topK := opts.numExpertsUsed

	idx = make([]int32, topK*numTokens)
	weight = make([]float32, topK*numTokens)

	for t := 0; t < numTokens; t++ {
		raw := scores[t*numExperts : (t+1)*numExperts]

		corrected := raw
		if bias != nil {
			corrected = make([]float32, numExperts)
			for e := range corrected {
				corrected[e] = raw[e] + bias[e]
			}
		}

		var candidates []int
		if opts.topkSelect == topkNoAuxTC && opts.numGroups > 1 {
			candidates = restrictToTopGroups(corrected, opts.numGroups, opts.groupsUsed)
		} else {
			candidates = allExperts(numExperts)
		}

		selected := topKBy(candidates, corrected, topK)

		var sum float32
		for i, e := range selected {
			w := raw[e]
			weight[t*topK+i] = w
			idx[t*topK+i] = int32(e)
			sum += w
		}

		if opts.normTopKProb && sum != 0 {
			for i := range selected {
				weight[t*topK+i] /= sum
			}
		}
		for i := range selected {
			weight[t*topK+i] *= opts.routedScalingFactor
		}
	}

	return idx, weight
}

func allExperts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// restrictToTopGroups keeps only the experts belonging to the groupsUsed
// groups with the highest sum-of-top-2 corrected score, the noaux_tc
// group-limited routing method.
func restrictToTopGroups(corrected []float32, numGroups, groupsUsed int) []int {
	groupSize := len(corrected) / numGroups
	type group struct {
		id    int
		score float32
	}
	groups := make([]group, numGroups)
	for g := 0; g < numGroups; g++ {
		members := corrected[g*groupSize : (g+1)*groupSize]
		groups[g] = group{id: g, score: sumTopTwo(members)}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].score > groups[j].score })
	if groupsUsed > len(groups) {
		groupsUsed = len(groups)
	}

	var candidates []int
	for _, g := range groups[:groupsUsed] {
		for e := g.id * groupSize; e < (g.id+1)*groupSize; e++ {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

func sumTopTwo(v []float32) float32 {
	var first, second float32 = -1e30, -1e30
	for _, x := range v {
		switch {
		case x > first:
			second = first
			first = x
		case x > second:
			second = x
		}
	}
	return first + second
}

// topKBy returns the topK candidate indices with the highest score.
func topKBy(candidates []int, score []float32, topK int) []int {
	sort.Slice(candidates, func(i, j int) bool { return score[candidates[i]] > score[candidates[j]] })
	if topK > len(candidates) {
		topK = len(candidates)
	}
	out := make([]int, topK)
	copy(out, candidates[:topK])
	return out
}
