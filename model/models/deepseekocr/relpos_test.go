package deepseekocr

import "testing"

func TestResizedRelPosTableExactLength(t *testing.T) {
	headDim := 2
	qSize, kSize := 3, 3
	rawLen := 2*max(qSize, kSize) - 1 // 5, already exact

	flat := make([]float32, rawLen*headDim)
	for i := range flat {
		flat[i] = float32(i)
	}

	table := resizedRelPosTable(flat, headDim, qSize, kSize)
	if len(table) != qSize*kSize*headDim {
		t.Fatalf("len(table) = %d, want %d", len(table), qSize*kSize*headDim)
	}

	// For qSize == kSize, the diagonal (qIdx == kIdx) maps to relative
	// coordinate kSize-1, the table's center entry.
	centerIdx := kSize - 1
	want := flat[centerIdx*headDim : (centerIdx+1)*headDim]
	for qIdx := 0; qIdx < qSize; qIdx++ {
		got := table[(qIdx*kSize+qIdx)*headDim : (qIdx*kSize+qIdx+1)*headDim]
		for c := range want {
			if got[c] != want[c] {
				t.Errorf("diagonal[%d][%d] = %v, want %v", qIdx, c, got[c], want[c])
			}
		}
	}
}

func TestResizedRelPosTableInterpolatesMismatchedLength(t *testing.T) {
	headDim := 1
	qSize, kSize := 4, 4
	// Stored at a different (smaller) resolution than 2*4-1=7.
	flat := []float32{0, 1, 2}

	table := resizedRelPosTable(flat, headDim, qSize, kSize)
	if len(table) != qSize*kSize*headDim {
		t.Fatalf("len(table) = %d, want %d", len(table), qSize*kSize*headDim)
	}
	for _, v := range table {
		if v < 0 || v > 2 {
			t.Errorf("interpolated value %v outside source range [0,2]", v)
		}
	}
}

func TestDecomposedRelativeBiasShape(t *testing.T) {
	headDim, numHeads := 4, 2
	qh, qw := 2, 2
	kh, kw := 2, 2

	q := make([]float32, qh*qw*numHeads*headDim)
	for i := range q {
		q[i] = 1
	}

	rawLen := 2*max(qh, kh) - 1
	relPosH := make([]float32, rawLen*headDim)
	relPosW := make([]float32, rawLen*headDim)
	for i := range relPosH {
		relPosH[i] = 0.5
		relPosW[i] = 0.5
	}

	bias := decomposedRelativeBias(q, qh, qw, kh, kw, headDim, numHeads, relPosH, relPosW)

	wantLen := numHeads * qh * qw * kh * kw
	if len(bias) != wantLen {
		t.Fatalf("len(bias) = %d, want %d", len(bias), wantLen)
	}

	// Every query vector and relative-position vector is uniform, so every
	// entry in the bias should come out identical.
	first := bias[0]
	for i, v := range bias {
		if v != first {
			t.Fatalf("bias[%d] = %v, want uniform %v", i, v, first)
		}
	}
}
