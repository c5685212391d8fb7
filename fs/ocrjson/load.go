package ocrjson

import (
	"encoding/json"
	"fmt"
	"io"
)

// Load reads a config.json-style document and returns the flattened
// fs.Config view over it. language_config is accepted as a legacy alias
// for text_config, matching the original loader's from_dict precedence:
// when both are present, text_config wins.
func Load(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ocrjson: read config: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ocrjson: parse config: %w", err)
	}

	text := doc.TextConfig
	if text == nil {
		text = doc.LanguageConfig
	}
	if text == nil {
		text = &textConfig{}
	}

	c := &Config{kv: make(map[string]any)}
	arch := doc.Architecture
	if arch == "" {
		arch = "deepseekocr"
	}
	c.kv["general.architecture"] = arch

	flattenText(c, text)
	flattenVision(c, &doc.VisionConfig)
	flattenProjector(c, &doc.ProjectorConfig, text)
	flattenGlobal(c, &doc)

	return c, nil
}

func flattenText(c *Config, t *textConfig) {
	arch := c.Architecture()

	c.kv[arch+".vocab_size"] = t.VocabSize
	c.kv[arch+".embedding_length"] = t.HiddenSize
	c.kv[arch+".feed_forward_length"] = t.IntermediateSize
	c.kv[arch+".block_count"] = t.NumHiddenLayers
	c.kv[arch+".attention.head_count"] = t.NumAttentionHeads
	c.kv[arch+".attention.head_count_kv"] = t.NumKeyValueHeads
	c.kv[arch+".context_length"] = t.MaxPositionEmbed
	c.kv[arch+".attention.layer_norm_rms_epsilon"] = t.RMSNormEps
	c.kv[arch+".rope.freq_base"] = t.RopeTheta

	if t.RopeScaling != nil {
		c.kv[arch+".rope.scaling.factor"] = t.RopeScaling.Factor
		c.kv[arch+".rope.scaling.yarn_log_multiplier"] = t.RopeScaling.MscaleAllDim
		c.kv[arch+".rope.scaling.original_context_length"] = t.RopeScaling.OriginalMaxPositionEmbed
	}

	c.kv[arch+".rope.dimension_count"] = t.QKRopeHeadDim
	c.kv[arch+".attention.key_length"] = t.QKNopeHeadDim + t.QKRopeHeadDim
	c.kv[arch+".attention.value_length"] = t.VHeadDim
	c.kv[arch+".attention.q_lora_rank"] = t.QLoraRank
	c.kv[arch+".attention.kv_lora_rank"] = t.KVLoraRank

	c.kv[arch+".expert_count"] = t.NRoutedExperts
	c.kv[arch+".expert_shared_count"] = t.NSharedExperts
	c.kv[arch+".expert_used_count"] = t.NumExpertsPerTok
	c.kv[arch+".expert_group_count"] = t.NGroup
	c.kv[arch+".expert_group_used_count"] = t.TopkGroup
	c.kv[arch+".leading_dense_block_count"] = t.FirstKDenseReplace
	c.kv[arch+".expert_weights_scale"] = t.RoutedScalingFactor
	c.kv[arch+".expert_scoring_func"] = t.ScoringFunc
	c.kv[arch+".expert_topk_method"] = t.TopkMethod
}

func flattenVision(c *Config, v *visionConfig) {
	arch := c.Architecture()

	c.kv[arch+".vision.sam.embedding_length"] = v.SAM.Width
	c.kv[arch+".vision.sam.block_count"] = v.SAM.Depth
	c.kv[arch+".vision.sam.attention.head_count"] = v.SAM.NumHeads
	c.kv[arch+".vision.sam.patch_size"] = v.SAM.PatchSize
	c.kv[arch+".vision.sam.image_size"] = v.SAM.ImageSize
	c.kv[arch+".vision.sam.mlp_ratio"] = v.SAM.MLPRatio
	c.kv[arch+".vision.sam.window_size"] = v.SAM.WindowSize
	c.kv[arch+".vision.sam.global_attn_indexes"] = &array[uint32]{values: v.SAM.GlobalAttnIndexes}
	c.kv[arch+".vision.sam.downsample_channels"] = &array[uint32]{values: v.SAM.DownsampleChannels}

	c.kv[arch+".vision.clip.embedding_length"] = v.CLIP.Width
	c.kv[arch+".vision.clip.block_count"] = v.CLIP.Layers
	c.kv[arch+".vision.clip.attention.head_count"] = v.CLIP.Heads
	c.kv[arch+".vision.clip.image_size"] = v.CLIP.ImageSize
	c.kv[arch+".vision.clip.patch_size"] = v.CLIP.PatchSize
	c.kv[arch+".vision.clip.mlp_ratio"] = v.CLIP.MLPRatio
}

func flattenProjector(c *Config, p *projectorConfig, t *textConfig) {
	arch := c.Architecture()

	c.kv[arch+".projector.input_dim"] = p.InputDim
	c.kv[arch+".projector.downsample_ratio"] = p.DownsampleRatio

	outputDim := p.NEmbed
	if outputDim == 0 {
		outputDim = t.HiddenSize
	}
	c.kv[arch+".projector.output_dim"] = outputDim
}

func flattenGlobal(c *Config, doc *document) {
	arch := c.Architecture()

	widths := make([]uint32, len(doc.CandidateResolutions))
	heights := make([]uint32, len(doc.CandidateResolutions))
	for i, wh := range doc.CandidateResolutions {
		widths[i], heights[i] = wh[0], wh[1]
	}
	c.kv[arch+".tile.candidate_resolution_widths"] = &array[uint32]{values: widths}
	c.kv[arch+".tile.candidate_resolution_heights"] = &array[uint32]{values: heights}
	c.kv[arch+".tile.tag_style"] = doc.TileTagStyle
	c.kv[arch+".tile.global_view_position"] = doc.GlobalViewPosition

	c.kv["tokenizer.ggml.bos_token_id"] = uint32(doc.BOSTokenID)
	c.kv["tokenizer.ggml.eos_token_id"] = uint32(doc.EOSTokenID)
}
