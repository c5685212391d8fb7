package ocrjson

// document mirrors the external config.json shape: three named sections
// plus a handful of top-level tiling/special-token properties. Unknown
// top-level or nested keys are ignored by encoding/json automatically
// since JSON keys with no matching field in document are simply dropped.
type document struct {
	Architecture string `json:"architecture"`

	TextConfig     *textConfig `json:"text_config"`
	LanguageConfig *textConfig `json:"language_config"`

	VisionConfig    visionConfig    `json:"vision_config"`
	ProjectorConfig projectorConfig `json:"projector_config"`

	CandidateResolutions [][2]uint32 `json:"candidate_resolutions"`
	TileTagStyle         string      `json:"tile_tag_style"`
	GlobalViewPosition   string      `json:"global_view_position"`

	BOSTokenID int32 `json:"bos_token_id"`
	EOSTokenID int32 `json:"eos_token_id"`
}

type textConfig struct {
	VocabSize          uint32  `json:"vocab_size"`
	HiddenSize         uint32  `json:"hidden_size"`
	IntermediateSize   uint32  `json:"intermediate_size"`
	NumHiddenLayers    uint32  `json:"num_hidden_layers"`
	NumAttentionHeads  uint32  `json:"num_attention_heads"`
	NumKeyValueHeads   uint32  `json:"num_key_value_heads"`
	MaxPositionEmbed   uint32  `json:"max_position_embeddings"`
	RMSNormEps         float32 `json:"rms_norm_eps"`
	RopeTheta          float32 `json:"rope_theta"`
	RopeScaling        *ropeScaling `json:"rope_scaling"`

	QKNopeHeadDim uint32 `json:"qk_nope_head_dim"`
	QKRopeHeadDim uint32 `json:"qk_rope_head_dim"`
	VHeadDim      uint32 `json:"v_head_dim"`
	QLoraRank     uint32 `json:"q_lora_rank"`
	KVLoraRank    uint32 `json:"kv_lora_rank"`

	NRoutedExperts      uint32  `json:"n_routed_experts"`
	NSharedExperts      uint32  `json:"n_shared_experts"`
	NumExpertsPerTok    uint32  `json:"num_experts_per_tok"`
	NGroup              uint32  `json:"n_group"`
	TopkGroup           uint32  `json:"topk_group"`
	FirstKDenseReplace  uint32  `json:"first_k_dense_replace"`
	ScoringFunc         string  `json:"scoring_func"`
	TopkMethod          string  `json:"topk_method"`
	RoutedScalingFactor float32 `json:"routed_scaling_factor"`
}

type ropeScaling struct {
	Type                       string  `json:"type"`
	Factor                     float32 `json:"factor"`
	MscaleAllDim               float32 `json:"mscale_all_dim"`
	OriginalMaxPositionEmbed   uint32  `json:"original_max_position_embeddings"`
}

type visionConfig struct {
	SAM  samConfig  `json:"sam"`
	CLIP clipConfig `json:"clip"`
}

type samConfig struct {
	Width              uint32   `json:"width"`
	Depth              uint32   `json:"depth"`
	NumHeads           uint32   `json:"num_heads"`
	PatchSize          uint32   `json:"patch_size"`
	ImageSize          uint32   `json:"image_size"`
	MLPRatio           float32  `json:"mlp_ratio"`
	GlobalAttnIndexes  []uint32 `json:"global_attn_indexes"`
	DownsampleChannels []uint32 `json:"downsample_channels"`
	WindowSize         uint32   `json:"window_size"`
}

type clipConfig struct {
	Width     uint32  `json:"width"`
	Layers    uint32  `json:"layers"`
	Heads     uint32  `json:"heads"`
	ImageSize uint32  `json:"image_size"`
	PatchSize uint32  `json:"patch_size"`
	MLPRatio  float32 `json:"mlp_ratio"`
}

type projectorConfig struct {
	InputDim        uint32  `json:"input_dim"`
	NEmbed          uint32  `json:"n_embed"`
	DownsampleRatio float32 `json:"downsample_ratio"`
}
