package ocrjson

import (
	"strings"
	"testing"
)

const sampleConfig = `{
	"architecture": "deepseekocr",
	"text_config": {
		"hidden_size": 1280,
		"num_hidden_layers": 12,
		"num_attention_heads": 10,
		"n_routed_experts": 64,
		"num_experts_per_tok": 6,
		"topk_method": "noaux_tc",
		"qk_nope_head_dim": 128,
		"qk_rope_head_dim": 64
	},
	"vision_config": {
		"sam": {"width": 768, "depth": 12, "num_heads": 12, "global_attn_indexes": [2, 5, 8, 11]},
		"clip": {"width": 1024, "layers": 24, "heads": 16}
	},
	"projector_config": {"input_dim": 2048, "downsample_ratio": 0.5},
	"candidate_resolutions": [[1, 1], [1, 2], [2, 1]],
	"bos_token_id": 0,
	"eos_token_id": 1
}`

func TestLoadFlattensTextConfig(t *testing.T) {
	c, err := Load(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.Architecture(); got != "deepseekocr" {
		t.Errorf("Architecture() = %q, want deepseekocr", got)
	}
	if got := c.Uint("embedding_length"); got != 1280 {
		t.Errorf("embedding_length = %d, want 1280", got)
	}
	if got := c.Uint("block_count"); got != 12 {
		t.Errorf("block_count = %d, want 12", got)
	}
	if got := c.Uint("expert_count"); got != 64 {
		t.Errorf("expert_count = %d, want 64", got)
	}
	if got := c.String("expert_topk_method"); got != "noaux_tc" {
		t.Errorf("expert_topk_method = %q, want noaux_tc", got)
	}
	if got := c.Uint("attention.key_length"); got != 192 {
		t.Errorf("attention.key_length = %d, want 192 (nope+rope)", got)
	}
}

func TestLoadFlattensVisionAndProjector(t *testing.T) {
	c, err := Load(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.Uint("vision.sam.embedding_length"); got != 768 {
		t.Errorf("vision.sam.embedding_length = %d, want 768", got)
	}
	if got := c.Uints("vision.sam.global_attn_indexes"); len(got) != 4 {
		t.Errorf("vision.sam.global_attn_indexes = %v, want 4 entries", got)
	}
	if got := c.Uint("vision.clip.block_count"); got != 24 {
		t.Errorf("vision.clip.block_count = %d, want 24", got)
	}
	if got := c.Uint("projector.output_dim"); got != 1280 {
		t.Errorf("projector.output_dim = %d, want hidden_size fallback 1280", got)
	}
}

func TestLoadAcceptsLanguageConfigAlias(t *testing.T) {
	doc := `{"language_config": {"hidden_size": 640, "num_hidden_layers": 4}, "vision_config": {}, "projector_config": {}}`
	c, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Uint("embedding_length"); got != 640 {
		t.Errorf("embedding_length = %d, want 640 via language_config alias", got)
	}
}

func TestLoadPrefersTextConfigOverLanguageConfigAlias(t *testing.T) {
	doc := `{
		"text_config": {"hidden_size": 1280},
		"language_config": {"hidden_size": 640},
		"vision_config": {}, "projector_config": {}
	}`
	c, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Uint("embedding_length"); got != 1280 {
		t.Errorf("embedding_length = %d, want 1280 (text_config wins)", got)
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	doc := `{"text_config": {"hidden_size": 1280, "totally_unknown_field": 42}, "vision_config": {}, "projector_config": {}, "some_future_toplevel": true}`
	if _, err := Load(strings.NewReader(doc)); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
