// Modul: relpos.go
// Beschreibung: Zerlegte relative Positions-Bias fuer SAM-Attention:
// je eine Tabelle fuer die Hoehen- und Breitenachse, linear interpoliert auf
// die passende Laenge, als additive Bias vor dem Softmax eingefuegt.

package deepseekocr

// decomposedRelativeBias computes SAM's decomposed relative position bias
// for a qh x qw query grid attending to a kh x kw key grid. q is laid out
// [headDim (fastest), numHeads, qh*qw]; relPosHFlat/relPosWFlat are each
// laid out [headDim (fastest), rawLen]. The result is laid out
// [kh*kw (fastest), qh*qw, numHeads] to add directly to raw attention
// scores before softmax.
func decomposedRelativeBias(q []float32, qh, qw, kh, kw, headDim, numHeads int, relPosHFlat, relPosWFlat []float32) []float32 {
	tableH := resizedRelPosTable(relPosHFlat, headDim, qh, kh)
	tableW := resizedRelPosTable(relPosWFlat, headDim, qw, kw)

	qLen := qh * qw
	kLen := kh * kw
	out := make([]float32, numHeads*qLen*kLen)

	for head := 0; head < numHeads; head++ {
		for qy := 0; qy < qh; qy++ {
			for qx := 0; qx < qw; qx++ {
				qPos := qy*qw + qx
				qVec := q[(qPos*numHeads+head)*headDim : (qPos*numHeads+head)*headDim+headDim]

				for ky := 0; ky < kh; ky++ {
					rh := tableH[(qy*kh+ky)*headDim : (qy*kh+ky)*headDim+headDim]
					var dotH float32
					for c := 0; c < headDim; c++ {
						dotH += qVec[c] * rh[c]
					}

					for kx := 0; kx < kw; kx++ {
						rw := tableW[(qx*kw+kx)*headDim : (qx*kw+kx)*headDim+headDim]
						var dotW float32
						for c := 0; c < headDim; c++ {
							dotW += qVec[c] * rw[c]
						}

						kPos := ky*kw + kx
						out[(head*qLen+qPos)*kLen+kPos] = dotH + dotW
					}
				}
			}
		}
	}

	return out
}

// resizedRelPosTable returns, for every (qIdx, kIdx) pair, the headDim-wide
// relative position vector, resizing the stored table to 2*max(q,k)-1
// entries by linear interpolation if its stored length doesn't already
// match (the stored length only matches at the resolution the weights
// were trained at).
func resizedRelPosTable(flat []float32, headDim, qSize, kSize int) []float32 {
	rawLen := len(flat) / headDim
	maxRelDist := 2*max(qSize, kSize) - 1

	table := flat
	if rawLen != maxRelDist {
		table = make([]float32, maxRelDist*headDim)
		for i := 0; i < maxRelDist; i++ {
			srcPos := float32(i) * float32(rawLen-1) / float32(max(maxRelDist-1, 1))
			lo := int(srcPos)
			hi := min(lo+1, rawLen-1)
			frac := srcPos - float32(lo)
			for c := 0; c < headDim; c++ {
				a := flat[lo*headDim+c]
				b := flat[hi*headDim+c]
				table[i*headDim+c] = a + (b-a)*frac
			}
		}
		rawLen = maxRelDist
	}

	qRatio := float32(1)
	if kSize > qSize {
		qRatio = float32(kSize) / float32(qSize)
	}
	kRatio := float32(1)
	if qSize > kSize {
		kRatio = float32(qSize) / float32(kSize)
	}

	out := make([]float32, qSize*kSize*headDim)
	for qIdx := 0; qIdx < qSize; qIdx++ {
		for kIdx := 0; kIdx < kSize; kIdx++ {
			relCoord := float32(qIdx)*qRatio - float32(kIdx)*kRatio + float32(kSize-1)*kRatio
			idx := int(relCoord + 0.5)
			if idx < 0 {
				idx = 0
			}
			if idx >= rawLen {
				idx = rawLen - 1
			}
			copy(out[(qIdx*kSize+kIdx)*headDim:(qIdx*kSize+kIdx+1)*headDim], table[idx*headDim:(idx+1)*headDim])
		}
	}

	return out
}
