package model

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// BytePairEncoding is a byte-level BPE tokenizer, the scheme GPT-2 and its
// descendants (including DeepSeek's) use: every input byte is first
// remapped into a printable rune so raw bytes are representable as
// vocabulary strings, then the pretokenizer regex splits the input into
// chunks that are merged greedily by the vocabulary's ranked merge rules.
type BytePairEncoding struct {
	vocab        *Vocabulary
	pretokenizer *regexp2.Regexp
}

// NewBytePairEncoding builds a tokenizer over vocab. patterns are ORed
// together into a single pretokenizer regex, matching how the reference
// splits its regex into several parts joined with alternation.
func NewBytePairEncoding(vocab *Vocabulary, patterns ...string) BytePairEncoding {
	var pretok *regexp2.Regexp
	if len(patterns) > 0 {
		pretok = regexp2.MustCompile(strings.Join(patterns, "|"), regexp2.None)
	}

	return BytePairEncoding{vocab: vocab, pretokenizer: pretok}
}

// byteToRune is GPT-2's byte-to-unicode table: printable bytes map to
// themselves, the rest map to an unused range starting at U+0100 so every
// byte sequence round-trips through a vocabulary built from text strings.
var byteToRune, runeToByte = buildByteRuneTables()

func buildByteRuneTables() (map[byte]rune, map[rune]byte) {
	btr := make(map[byte]rune, 256)
	rtb := make(map[rune]byte, 256)

	printable := func(b byte) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}

	next := rune(0x100)
	for b := 0; b < 256; b++ {
		if printable(byte(b)) {
			btr[byte(b)] = rune(b)
		} else {
			btr[byte(b)] = next
			next++
		}
		rtb[btr[byte(b)]] = byte(b)
	}
	return btr, rtb
}

func toByteLevel(s string) string {
	var sb strings.Builder
	for _, b := range []byte(s) {
		sb.WriteRune(byteToRune[b])
	}
	return sb.String()
}

func fromByteLevel(s string) string {
	var out []byte
	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			out = append(out, b)
		}
	}
	return string(out)
}

// mergeBPE greedily merges adjacent symbols by lowest merge rank until no
// mergeable pair remains, the standard BPE encode loop.
func (bpe BytePairEncoding) mergeBPE(word string) []string {
	symbols := strings.Split(word, "")
	if len(symbols) <= 1 {
		return symbols
	}

	for {
		bestRank := -1
		bestIdx := -1
		for i := 0; i < len(symbols)-1; i++ {
			if r, ok := bpe.vocab.rank(symbols[i], symbols[i+1]); ok {
				if bestRank == -1 || r < bestRank {
					bestRank = r
					bestIdx = i
				}
			}
		}
		if bestIdx == -1 {
			break
		}

		merged := symbols[bestIdx] + symbols[bestIdx+1]
		symbols = append(symbols[:bestIdx], append([]string{merged}, symbols[bestIdx+2:]...)...)
	}

	return symbols
}

func (bpe BytePairEncoding) chunks(s string) ([]string, error) {
	if bpe.pretokenizer == nil {
		return []string{s}, nil
	}

	var out []string
	m, err := bpe.pretokenizer.FindStringMatch(s)
	for m != nil && err == nil {
		out = append(out, m.String())
		m, err = bpe.pretokenizer.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("tokenizer: pretokenize: %w", err)
	}
	return out, nil
}

// Encode converts s into token ids, prepending the vocabulary's BOS ids
// when addSpecial is set and the vocabulary requests it.
func (bpe BytePairEncoding) Encode(s string, addSpecial bool) ([]int32, error) {
	chunks, err := bpe.chunks(s)
	if err != nil {
		return nil, err
	}

	var ids []int32
	if addSpecial && bpe.vocab.AddBOS {
		ids = append(ids, bpe.vocab.BOS...)
	}

	for _, chunk := range chunks {
		byteLevel := toByteLevel(chunk)
		for _, piece := range bpe.mergeBPE(byteLevel) {
			if id, ok := bpe.vocab.id(piece); ok {
				ids = append(ids, id)
				continue
			}

			// Fall back to one token per raw byte-level rune so no input
			// is ever silently dropped.
			for _, r := range piece {
				if id, ok := bpe.vocab.id(string(r)); ok {
					ids = append(ids, id)
				}
			}
		}
	}

	return ids, nil
}

// Decode renders ids back to text, stripping any id the vocabulary
// doesn't recognize.
func (bpe BytePairEncoding) Decode(ids []int32) (string, error) {
	var sb strings.Builder
	for _, id := range ids {
		if int(id) < 0 || int(id) >= len(bpe.vocab.Values) {
			continue
		}
		sb.WriteString(bpe.vocab.Values[id])
	}
	return fromByteLevel(sb.String()), nil
}

// Is reports whether id plays the given special role for this vocabulary.
func (bpe BytePairEncoding) Is(id int32, special SpecialToken) bool {
	switch special {
	case SpecialBOS:
		return contains(bpe.vocab.BOS, id)
	case SpecialEOS:
		return contains(bpe.vocab.EOS, id)
	default:
		return false
	}
}

// EOS returns every token id that ends generation for this vocabulary.
func (bpe BytePairEncoding) EOS() []int32 {
	return bpe.vocab.EOS
}

func contains(ids []int32, id int32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
