package embedding

import "strings"

// Tokenizer produces token IDs for BERT-style models (input_ids,
// attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
	// TokenizePair encodes "[CLS] a [SEP] b [SEP]" with segment ids, as
	// cross-encoder relevance models expect.
	TokenizePair(a, b string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs. It is
// a fallback for models whose real vocabulary file is unavailable, and the
// deterministic basis of MockEmbedder in tests.
type SimpleTokenizer struct{}

const (
	clsTokenID int64 = 101
	sepTokenID int64 = 102
	vocabSize        = 30000
)

// Tokenize splits text into words and produces padded token IDs up to
// maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1
	pos := 1
	pos = t.appendWords(text, inputIDs, attentionMask, tokenTypeIDs, pos, maxTokens, 0)
	if pos < maxTokens {
		inputIDs[pos] = sepTokenID
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// TokenizePair encodes two texts as one sequence with segment ids 0 and 1.
func (t *SimpleTokenizer) TokenizePair(a, b string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1
	pos := 1
	pos = t.appendWords(a, inputIDs, attentionMask, tokenTypeIDs, pos, maxTokens, 0)
	if pos < maxTokens-1 {
		inputIDs[pos] = sepTokenID
		attentionMask[pos] = 1
		pos++
	}
	pos = t.appendWords(b, inputIDs, attentionMask, tokenTypeIDs, pos, maxTokens, 1)
	if pos < maxTokens {
		inputIDs[pos] = sepTokenID
		attentionMask[pos] = 1
		tokenTypeIDs[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

func (t *SimpleTokenizer) appendWords(text string, inputIDs, attentionMask, tokenTypeIDs []int64, pos, maxTokens int, segment int64) int {
	for _, word := range SplitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(HashString(word) % vocabSize)
		attentionMask[pos] = 1
		tokenTypeIDs[pos] = segment
		pos++
	}
	return pos
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// HashString returns a deterministic non-negative hash for use as a simple
// token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
