// Modul: model.go
// Beschreibung: DeepSeek-OCR Modell-Definition: SAM+CLIP Deep-Encoder,
// multimodale Fusion und DeepSeek-V2-artiger MoE-Textdecoder.

package deepseekocr

import (
	"cmp"
	"math"

	"golang.org/x/sync/errgroup"

	"ocr-go-infer/fs"
	"ocr-go-infer/kvcache"
	"ocr-go-infer/ml"
	"ocr-go-infer/ml/nn"
	"ocr-go-infer/model"
	"ocr-go-infer/model/input"
	"ocr-go-infer/vision"
	"ocr-go-infer/vision/preprocess"
)

// Model is the full DeepSeek-OCR architecture: a vision deep-encoder that
// turns image tiles into embeddings, fused into the token stream ahead of
// a DeepSeek-V2-style causal decoder.
type Model struct {
	model.Base
	model.BytePairEncoding

	TokenEmbedding *nn.Embedding `gguf:"token_embd"`
	Layers         []Layer       `gguf:"blk"`

	OutputNorm *nn.RMSNorm `gguf:"output_norm"`
	Output     *nn.Linear  `gguf:"output,alt:token_embd"`

	Encoder *DeepEncoder `gguf:"vision"`

	*Options

	imageTokenID         int32
	tileSize             int
	candidateResolutions []preprocess.Resolution
}

var _ model.MultimodalProcessor = (*Model)(nil)

// New builds a DeepSeek-OCR model from its configuration, whether backed
// by GGUF metadata or a JSON-sourced fs.Config (see fs/ocrjson).
func New(c fs.Config) (model.Model, error) {
	layers := make([]Layer, c.Uint("block_count"))
	firstDenseLayerIndex := int(c.Uint("leading_dense_block_count"))
	for i := range layers {
		if i < firstDenseLayerIndex {
			layers[i].MLP = &dense{}
		} else {
			layers[i].MLP = &sparse{}
		}
	}

	// the key length is qk_nope_head_dim + qk_rope_head_dim
	useSplitHeads := cmp.Or(c.Uint("attention.key_length_mla"), c.Uint("attention.key_length")) != 0

	mScale := float32(1.0 + float64(c.Float("rope.scaling.yarn_log_multiplier"))*math.Log(float64(c.Float("rope.scaling.factor", 1))))
	kqScale := float64(mScale) * float64(mScale) / math.Sqrt(float64(c.Uint("attention.key_length")))

	isMLA := c.Uint("attention.key_length_mla") != 0 && c.Uint("attention.value_length_mla") != 0
	keyLength := int(cmp.Or(c.Uint("attention.key_length_mla"), c.Uint("attention.key_length")))
	valueLength := int(cmp.Or(c.Uint("attention.value_length_mla"), c.Uint("attention.value_length")))

	var scoring scoringFunc
	if c.String("expert_scoring_func") == "sigmoid" {
		scoring = scoringSigmoid
	}
	var topkSelect topkMethod
	if c.String("expert_topk_method") == "noaux_tc" {
		topkSelect = topkNoAuxTC
	}

	m := Model{
		BytePairEncoding: model.NewBytePairEncoding(
			&model.Vocabulary{
				Values: c.Strings("tokenizer.ggml.tokens"),
				Types:  c.Ints("tokenizer.ggml.token_type"),
				Merges: c.Strings("tokenizer.ggml.merges"),
				AddBOS: c.Bool("tokenizer.ggml.add_bos_token", true),
				BOS:    []int32{int32(c.Uint("tokenizer.ggml.bos_token_id"))},
				AddEOS: c.Bool("tokenizer.ggml.add_eos_token", false),
				EOS:    []int32{int32(c.Uint("tokenizer.ggml.eos_token_id"))},
			},
			"\\p{N}{1,3}",
			`[一-龥぀-ゟ゠-ヿ]+`,
			"[!\"#$%&'()*+,\\-./:;<=>?@\\[\\\\\\]^_`{|}~][A-Za-z]+|[^\r\n\\p{L}\\p{P}\\p{S}]?[\\p{L}\\p{M}]+| ?[\\p{P}\\p{S}]+[\r\n]*|\\s*[\r\n]+|\\s+(?!\\S)|\\s+",
		),
		Layers: layers,
		Options: &Options{
			useSplitHeads:  useSplitHeads,
			isMLA:          isMLA,
			hiddenSize:     int(c.Uint("embedding_length")),
			numHeads:       int(c.Uint("attention.head_count")),
			numKVHeads:     int(c.Uint("attention.head_count_kv")),
			eps:            c.Float("attention.layer_norm_rms_epsilon"),
			ropeBase:       c.Float("rope.freq_base"),
			ropeScale:      c.Float("rope.scaling.factor", 1),
			numExperts:     int(c.Uint("expert_count")),
			numExpertsUsed: int(c.Uint("expert_used_count")),
			numGroups:      int(c.Uint("expert_group_count")),
			groupsUsed:     int(c.Uint("expert_group_used_count")),
			normTopKProb:   c.Bool("expert_weights_norm", true),
			scoring:        scoring,
			topkSelect:     topkSelect,

			qLoraRank:     int(c.Uint("attention.q_lora_rank")),
			kvLoraRank:    int(c.Uint("attention.kv_lora_rank")),
			qkHeadDim:     keyLength,
			vHeadDim:      valueLength,
			qkRopeHeadDim: int(c.Uint("rope.dimension_count")),
			qkNopeHeadDim: keyLength - int(c.Uint("rope.dimension_count")),
			kqNopeHeadDim: keyLength - int(c.Uint("rope.dimension_count")),

			routedScalingFactor:   c.Float("expert_weights_scale", 1),
			originalContextLength: int(c.Uint("rope.scaling.original_context_length")),

			kqScale: kqScale,
		},
		Encoder: newDeepEncoder(c),

		imageTokenID: int32(c.Uint("tile.image_token_id")),
		tileSize:     int(c.Uint("vision.sam.image_size")),
	}

	widths := c.Uints("tile.candidate_resolution_widths")
	heights := c.Uints("tile.candidate_resolution_heights")
	for i := range widths {
		if i >= len(heights) {
			break
		}
		m.candidateResolutions = append(m.candidateResolutions, preprocess.Resolution{
			Width:  int(widths[i]),
			Height: int(heights[i]),
		})
	}

	m.Cache = kvcache.NewCausalCache(m.Shift)
	return &m, nil
}

func newDeepEncoder(c fs.Config) *DeepEncoder {
	globalAttn := c.Ints("vision.sam.global_attn_indexes")
	downsampleChannels := c.Uints("vision.sam.downsample_channels")

	return &DeepEncoder{
		SAM: &SAMModel{
			SAMOptions: &SAMOptions{
				width:              int(c.Uint("vision.sam.embedding_length")),
				depth:              int(c.Uint("vision.sam.block_count")),
				numHeads:           int(c.Uint("vision.sam.attention.head_count")),
				patchSize:          int(c.Uint("vision.sam.patch_size")),
				imageSize:          int(c.Uint("vision.sam.image_size")),
				mlpRatio:           c.Float("vision.sam.mlp_ratio", 4),
				windowSize:         int(c.Uint("vision.sam.window_size")),
				globalAttnIndexes:  globalAttn,
				downsampleChannels: downsampleChannels,
				eps:                1e-6,
			},
		},
		CLIP: &CLIPModel{
			CLIPOptions: &CLIPOptions{
				width:     int(c.Uint("vision.clip.embedding_length")),
				layers:    int(c.Uint("vision.clip.block_count")),
				heads:     int(c.Uint("vision.clip.attention.head_count")),
				imageSize: int(c.Uint("vision.clip.image_size")),
				patchSize: int(c.Uint("vision.clip.patch_size")),
				mlpRatio:  c.Float("vision.clip.mlp_ratio", 4),
				eps:       1e-5,
			},
		},
		VisionOptions: &VisionOptions{
			Projector: ProjectorOptions{
				inputDim:        int(c.Uint("projector.input_dim")),
				outputDim:       int(c.Uint("projector.output_dim")),
				downsampleRatio: c.Float("projector.downsample_ratio", 1),
			},
		},
	}
}

// EncodeMultimodal decodes one image, tiles it per the configured
// candidate resolutions, and encodes every tile through the deep encoder,
// returning one Multimodal chunk per tile in (global, then local
// row-major) order.
func (m *Model) EncodeMultimodal(ctx ml.Context, data []byte) ([]input.Multimodal, error) {
	img, err := vision.LoadImageFromBytes(data)
	if err != nil {
		return nil, err
	}

	tiled, err := preprocess.Process(img, m.candidateResolutions, m.tileSize, vision.ImageNetStandardMean, vision.ImageNetStandardStd)
	if err != nil {
		return nil, err
	}

	tiles := append([]preprocess.Tile{tiled.Global}, tiled.Local...)
	out := make([]input.Multimodal, len(tiles))

	// Each tile's SAM+CLIP pass is independent of every other tile, so they
	// run concurrently; tileConcurrency caps how many run at once to bound
	// peak memory on large tile grids.
	g := new(errgroup.Group)
	g.SetLimit(tileConcurrency)
	for i, t := range tiles {
		i, t := i, t
		g.Go(func() error {
			tileCtx := ctx.Input()
			pixels := tileCtx.FromFloats(t.Pixels, t.Width, t.Height, 3, 1)
			out[i] = input.Multimodal{Tensor: m.Encoder.EncodeTile(tileCtx, pixels)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// tileConcurrency bounds how many tiles are encoded in parallel.
const tileConcurrency = 4

// PostTokenize expands every image placeholder input into a run of
// placeholder positions matching its encoded tile's token count, so that
// Forward's fuseEmbeddings call can scatter the tile tensor in directly.
func (m *Model) PostTokenize(inputs []*input.Input) ([]*input.Input, error) {
	var out []*input.Input
	for _, in := range inputs {
		if len(in.Multimodal) == 0 {
			out = append(out, in)
			continue
		}

		for _, mm := range in.Multimodal {
			runLen := mm.Tensor.Dim(1)
			for i := 0; i < runLen; i++ {
				placeholder := &input.Input{Token: m.imageTokenID}
				if i == 0 {
					placeholder.Multimodal = []input.Multimodal{mm}
					placeholder.MultimodalHash = in.MultimodalHash
					placeholder.SameBatch = runLen - 1
				}
				out = append(out, placeholder)
			}
		}
	}
	return out, nil
}

// Shift applies RoPE repositioning to cached keys, used when the KV cache
// evicts a prefix and must renumber the remaining positions.
func (m Model) Shift(ctx ml.Context, layer int, key, shift ml.Tensor) (ml.Tensor, error) {
	return m.applyRotaryPositionEmbeddings(ctx, key, shift), nil
}

// Forward embeds the token sequence, fuses in any multimodal tile
// embeddings at their placeholder positions, and runs the causal decoder.
func (m *Model) Forward(ctx ml.Context, batch input.Batch) (ml.Tensor, error) {
	positions := ctx.Input().FromInts(batch.Positions, len(batch.Positions))

	hiddenStates := m.TokenEmbedding.Forward(ctx, batch.Inputs)
	hiddenStates = fuseEmbeddings(ctx, hiddenStates, batch.Multimodal)

	for i, layer := range m.Layers {
		m.Cache.SetLayer(i)

		var outputs ml.Tensor
		if i == len(m.Layers)-1 {
			outputs = batch.Outputs
		}

		hiddenStates = layer.Forward(ctx, hiddenStates, positions, outputs, m.Cache, m.Options)
	}

	hiddenStates = m.OutputNorm.Forward(ctx, hiddenStates, m.eps)
	return m.Output.Forward(ctx, hiddenStates), nil
}

func init() {
	model.Register("deepseekocr", New)
}
