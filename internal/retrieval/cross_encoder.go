//go:build cgo
// +build cgo

package retrieval

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/vedanta-labs/vaidya/internal/embedding"
)

// CrossEncoder is a PairScorer backed by an ONNX cross-encoder relevance
// model (e.g. ms-marco-MiniLM-L-6-v2). Query and passage are encoded as a
// single [CLS] q [SEP] p [SEP] sequence and the model emits one logit.
// Requires CGO and the onnxruntime shared library.
type CrossEncoder struct {
	session   *ort.AdvancedSession
	maxTokens int
	tokenizer embedding.Tokenizer

	// Run() reads and writes the pre-allocated tensors in place, so calls
	// are serialized by mu.
	ids      *ort.Tensor[int64]
	mask     *ort.Tensor[int64]
	segments *ort.Tensor[int64]
	output   *ort.Tensor[float32]
	mu       sync.Mutex
}

// NewCrossEncoder creates a cross-encoder scorer for the model at modelPath.
func NewCrossEncoder(modelPath string, maxTokens int) (*CrossEncoder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}

	tokenizer := &embedding.SimpleTokenizer{}
	seed, seedMask, seedSegments := tokenizer.TokenizePair("", "", maxTokens)

	shape := ort.NewShape(1, int64(maxTokens))
	ids, err := ort.NewTensor(shape, seed)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	mask, err := ort.NewTensor(shape, seedMask)
	if err != nil {
		ids.Destroy()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	segments, err := ort.NewTensor(shape, seedSegments)
	if err != nil {
		ids.Destroy()
		mask.Destroy()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1))
	if err != nil {
		ids.Destroy()
		mask.Destroy()
		segments.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{ids, mask, segments},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		ids.Destroy()
		mask.Destroy()
		segments.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &CrossEncoder{
		session:   session,
		maxTokens: maxTokens,
		tokenizer: tokenizer,
		ids:       ids,
		mask:      mask,
		segments:  segments,
		output:    output,
	}, nil
}

// Score runs one inference for the query/text pair and returns the raw
// relevance logit.
func (c *CrossEncoder) Score(ctx context.Context, query, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ids, mask, segments := c.tokenizer.TokenizePair(query, text, c.maxTokens)
	copy(c.ids.GetData(), ids)
	copy(c.mask.GetData(), mask)
	copy(c.segments.GetData(), segments)

	if err := c.session.Run(); err != nil {
		return 0, fmt.Errorf("cross-encoder inference failed: %w", err)
	}
	return float64(c.output.GetData()[0]), nil
}

// Close destroys the session and tensors.
func (c *CrossEncoder) Close() error {
	var err error
	if c.session != nil {
		err = c.session.Destroy()
		c.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{c.ids, c.mask, c.segments} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if c.output != nil {
		_ = c.output.Destroy()
		c.output = nil
	}
	c.ids, c.mask, c.segments = nil, nil, nil
	return err
}
