package model

// Vocabulary is the token table read straight out of a GGUF file's
// tokenizer.ggml.* keys: the ordered list of token strings (Values,
// indexed by token id), their llama.cpp-style type tags, the ranked BPE
// merge rules, and which ids mark the beginning/end of a sequence.
type Vocabulary struct {
	Values []string
	Types  []int32
	Merges []string

	AddBOS bool
	BOS    []int32
	AddEOS bool
	EOS    []int32

	idByValue map[string]int32
	mergeRank map[mergePair]int
}

type mergePair struct {
	left, right string
}

func (v *Vocabulary) ensureIndex() {
	if v.idByValue != nil {
		return
	}

	v.idByValue = make(map[string]int32, len(v.Values))
	for id, s := range v.Values {
		v.idByValue[s] = int32(id)
	}

	v.mergeRank = make(map[mergePair]int, len(v.Merges))
	for rank, merge := range v.Merges {
		// Each merge rule is serialized as "left right" in the GGUF array.
		for i := 0; i < len(merge); i++ {
			if merge[i] == ' ' {
				v.mergeRank[mergePair{merge[:i], merge[i+1:]}] = rank
				break
			}
		}
	}
}

func (v *Vocabulary) id(s string) (int32, bool) {
	v.ensureIndex()
	id, ok := v.idByValue[s]
	return id, ok
}

func (v *Vocabulary) rank(left, right string) (int, bool) {
	v.ensureIndex()
	r, ok := v.mergeRank[mergePair{left, right}]
	return r, ok
}
