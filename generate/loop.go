// Modul: loop.go
// Beschreibung: Einzelsequenz-Generierungsschleife: Prefill des Prompts,
// dann autoregressiver Decode-Schritt fuer Schritt mit KV-Cache, bis ein
// Stop-Token oder das Token-Limit erreicht wird. Eine deutlich vereinfachte
// Variante von runner/ollamarunner's nebenlaeufigem Mehrsequenz-Server, da
// dieses Werkzeug jeweils ein Dokument auf einmal verarbeitet.

package generate

import (
	"ocr-go-infer/internal/ocrerr"
	"ocr-go-infer/ml"
	"ocr-go-infer/model"
	"ocr-go-infer/model/input"
)

// Options configures one generation request.
type Options struct {
	MaxTokens int
	Stop      []int32
	Sampling  SamplingParams
}

// Result is the outcome of a generation run.
type Result struct {
	Tokens        []int32
	StoppedOnStop bool
}

// Run prefills prompt into m's KV cache, then decodes one token at a time
// until a stop token from opts.Stop is produced or opts.MaxTokens tokens
// have been generated.
func Run(m model.Model, prompt []*input.Input, opts Options) (Result, error) {
	backend := m.Backend()
	sampler := NewSampler(opts.Sampling)
	stop := make(map[int32]bool, len(opts.Stop))
	for _, t := range opts.Stop {
		stop[t] = true
	}

	var result Result

	nextToken, err := prefill(backend, m, prompt, sampler)
	if err != nil {
		return result, err
	}

	result.Tokens = append(result.Tokens, nextToken)
	if stop[nextToken] {
		result.StoppedOnStop = true
		return result, nil
	}

	position := int32(len(prompt))
	for len(result.Tokens) < opts.MaxTokens {
		nextToken, err = decodeStep(backend, m, nextToken, position, sampler)
		if err != nil {
			return result, err
		}

		result.Tokens = append(result.Tokens, nextToken)
		if stop[nextToken] {
			result.StoppedOnStop = true
			break
		}
		position++
	}

	return result, nil
}

// prefill runs the whole prompt through the model in one forward pass and
// samples the first generated token from the last position's logits.
func prefill(backend ml.Backend, m model.Model, prompt []*input.Input, sampler *Sampler) (int32, error) {
	ctx := backend.NewContext()
	defer ctx.Close()

	tokens := make([]int32, len(prompt))
	positions := make([]int32, len(prompt))
	sequences := make([]int, len(prompt))
	var multimodal []input.MultimodalIndex

	for i, in := range prompt {
		tokens[i] = in.Token
		positions[i] = int32(i)
		sequences[i] = 0
		for _, mm := range in.Multimodal {
			multimodal = append(multimodal, input.MultimodalIndex{Index: i, Multimodal: mm})
		}
	}

	batch := input.Batch{
		Inputs:     ctx.Input().FromInts(tokens, len(tokens)),
		Multimodal: multimodal,
		Positions:  positions,
		Sequences:  sequences,
		Outputs:    ctx.Input().FromInts([]int32{int32(len(tokens) - 1)}, 1),
	}

	logits, err := forward(ctx, m, batch)
	if err != nil {
		return 0, err
	}

	return sampler.Sample(logits), nil
}

// decodeStep runs a single new token through the model at the given
// position, relying on the model's KV cache for everything before it.
func decodeStep(backend ml.Backend, m model.Model, token int32, position int32, sampler *Sampler) (int32, error) {
	ctx := backend.NewContext()
	defer ctx.Close()

	batch := input.Batch{
		Inputs:    ctx.Input().FromInts([]int32{token}, 1),
		Positions: []int32{position},
		Sequences: []int{0},
		Outputs:   ctx.Input().FromInts([]int32{0}, 1),
	}

	logits, err := forward(ctx, m, batch)
	if err != nil {
		return 0, err
	}

	return sampler.Sample(logits), nil
}

func forward(ctx ml.Context, m model.Model, batch input.Batch) ([]float32, error) {
	t, err := model.Forward(ctx, m, batch)
	if err != nil {
		return nil, ocrerr.New(ocrerr.Arithmetic, "generate.forward", err)
	}
	ctx.Compute(t)
	return t.Floats(), nil
}
