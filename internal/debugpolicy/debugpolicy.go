// Package debugpolicy holds process-wide debug knobs for inspecting and
// perturbing inference: disabling routed experts, forcing a fixed gate
// selection, overriding RoPE scaling, injecting externally computed RoPE
// tables, forcing the QK-RoPE path, and capturing attention weights from
// specific layers. Every knob defaults to inert; nothing here changes
// behavior unless explicitly set, typically from cmd/ocr flags. Only
// DisableRoutedExperts and RopeScaleOverride are read by model code;
// ForcedGate, ExternalRope, ForceQKRope and AttentionCaptureLayers are
// stored but read by nothing, so setting them has no effect.
package debugpolicy

import "sync"

// Policy holds one request's debug configuration. The zero value is
// inert: every feature is disabled.
type Policy struct {
	// DisableRoutedExperts skips MoE routed-expert contribution entirely,
	// leaving only the shared expert's output, useful for isolating
	// whether a quality regression comes from the router.
	DisableRoutedExperts bool

	// ForcedGate holds a fixed set of expert indices for every token.
	// The router does not read it; expert selection is unchanged.
	ForcedGate []int32

	// RopeScaleOverride, if non-zero, replaces the configured RoPE
	// scaling factor.
	RopeScaleOverride float32

	// ExternalRope holds precomputed per-position RoPE angles. No RoPE
	// call reads it; angles are always derived from rope.freq_base.
	ExternalRope []float32

	// ForceQKRope names applying RoPE to the full query/key vectors
	// instead of just the qk_rope_head_dim slice. The attention code does
	// not read it; the split-head variant always ropes only that slice.
	ForceQKRope bool

	// AttentionCaptureLayers lists decoder layer indices for attention
	// capture. No attention code reads it or retains any weights.
	AttentionCaptureLayers []int
}

var (
	mu      sync.RWMutex
	current Policy
)

// Set installs the process-wide debug policy.
func Set(p Policy) {
	mu.Lock()
	defer mu.Unlock()
	current = p
}

// Get returns the current process-wide debug policy.
func Get() Policy {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CapturesLayer reports whether layer is listed in AttentionCaptureLayers.
func (p Policy) CapturesLayer(layer int) bool {
	for _, l := range p.AttentionCaptureLayers {
		if l == layer {
			return true
		}
	}
	return false
}
