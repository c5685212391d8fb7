package debugpolicy

import "testing"

func TestZeroValuePolicyIsInert(t *testing.T) {
	var p Policy
	if p.DisableRoutedExperts {
		t.Error("zero value Policy.DisableRoutedExperts should be false")
	}
	if p.CapturesLayer(0) {
		t.Error("zero value Policy should not capture any layer")
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	want := Policy{DisableRoutedExperts: true, ForceQKRope: true}
	Set(want)
	defer Set(Policy{})

	got := Get()
	if got.DisableRoutedExperts != want.DisableRoutedExperts || got.ForceQKRope != want.ForceQKRope {
		t.Fatalf("Get() = %+v, want %+v", got, want)
	}
}

func TestCapturesLayer(t *testing.T) {
	p := Policy{AttentionCaptureLayers: []int{2, 5, 9}}

	for _, l := range []int{2, 5, 9} {
		if !p.CapturesLayer(l) {
			t.Errorf("CapturesLayer(%d) = false, want true", l)
		}
	}
	for _, l := range []int{0, 1, 3, 10} {
		if p.CapturesLayer(l) {
			t.Errorf("CapturesLayer(%d) = true, want false", l)
		}
	}
}
