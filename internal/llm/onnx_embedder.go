// ABOUTME: Local sentence embeddings through ONNX Runtime and a HuggingFace tokenizer
// ABOUTME: Mean-pools the last hidden state over the attention mask and L2-normalizes
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"

	tokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// DefaultONNXMaxTokens matches the all-MiniLM sequence length
const DefaultONNXMaxTokens = 256

// ONNXConfig locates the model, tokenizer and runtime library
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	// LibraryPath is the onnxruntime shared library; empty uses the loader default
	LibraryPath string
	MaxTokens   int
}

// ONNXEmbedder embeds text with a local transformer model
type ONNXEmbedder struct {
	tok       *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	modelName string
	maxTokens int

	// sessions are not safe for concurrent Run calls
	mu sync.Mutex
}

// NewONNXEmbedder loads the tokenizer and creates an inference session
func NewONNXEmbedder(config ONNXConfig) (*ONNXEmbedder, error) {
	if config.ModelPath == "" || config.TokenizerPath == "" {
		return nil, errors.New("onnx model path and tokenizer path are required")
	}

	tok, err := pretrained.FromFile(config.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	if config.LibraryPath != "" {
		ort.SetSharedLibraryPath(config.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to set graph optimization: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		opts,
	)
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultONNXMaxTokens
	}

	return &ONNXEmbedder{
		tok:       tok,
		session:   session,
		modelName: modelNameFromPath(config.ModelPath),
		maxTokens: maxTokens,
	}, nil
}

// modelNameFromPath names the model after its directory, falling back to the file stem
func modelNameFromPath(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir != "." && dir != string(filepath.Separator) && dir != "" {
		return dir
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (e *ONNXEmbedder) ModelName() string {
	return e.modelName
}

// Embed returns one unit-length vector per input text
func (e *ONNXEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputs := make([]tokenizer.EncodeInput, len(texts))
	for i, t := range texts {
		inputs[i] = tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(t))
	}

	encodings, err := e.tok.EncodeBatch(inputs, true)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}

	ids := make([][]int, len(encodings))
	masks := make([][]int, len(encodings))
	for i, enc := range encodings {
		ids[i], masks[i] = truncateEncoding(enc.GetIds(), enc.GetAttentionMask(), e.maxTokens)
	}

	batchSize, seqLen, inputIDs, attentionMask := padBatch(ids, masks)
	tokenTypeIDs := make([]int64, len(inputIDs))
	shape := ort.NewShape(int64(batchSize), int64(seqLen))

	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := make([]ort.Value, 1)
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("output tensor is not float32 type")
	}

	outShape := hidden.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}

	// meanPool copies out of the tensor before it is destroyed
	vectors := meanPool(hidden.GetData(), attentionMask, int(outShape[0]), int(outShape[1]), int(outShape[2]))
	for _, v := range vectors {
		l2Normalize(v)
	}
	return vectors, nil
}

// Close releases the session and the runtime environment
func (e *ONNXEmbedder) Close() error {
	var errs []error
	if e.session != nil {
		errs = append(errs, e.session.Destroy())
	}
	errs = append(errs, ort.DestroyEnvironment())
	return errors.Join(errs...)
}

// truncateEncoding drops tokenizer padding, then cuts the sequence to max
// tokens while keeping its final [SEP], as sentence-transformers does
func truncateEncoding(ids, mask []int, max int) ([]int, []int) {
	n := len(ids)
	if len(mask) == n {
		for n > 0 && mask[n-1] == 0 {
			n--
		}
		mask = mask[:n]
	}
	ids = ids[:n]
	if max <= 0 || n <= max {
		return ids, mask
	}
	return keepLast(ids, max), keepLast(mask, max)
}

// keepLast returns the first max-1 tokens followed by the last one
func keepLast(tokens []int, max int) []int {
	if len(tokens) <= max {
		return tokens
	}
	out := make([]int, max)
	copy(out, tokens[:max-1])
	out[max-1] = tokens[len(tokens)-1]
	return out
}

// padBatch flattens ragged sequences into zero-padded row-major buffers
func padBatch(ids, masks [][]int) (batchSize, seqLen int, flatIDs, flatMask []int64) {
	batchSize = len(ids)
	for _, seq := range ids {
		if len(seq) > seqLen {
			seqLen = len(seq)
		}
	}

	flatIDs = make([]int64, batchSize*seqLen)
	flatMask = make([]int64, batchSize*seqLen)
	for i := range ids {
		offset := i * seqLen
		for j, id := range ids[i] {
			flatIDs[offset+j] = int64(id)
			if j < len(masks[i]) {
				flatMask[offset+j] = int64(masks[i][j])
			}
		}
	}
	return batchSize, seqLen, flatIDs, flatMask
}

// meanPool averages token vectors whose mask is set
func meanPool(data []float32, mask []int64, batch, seq, hidden int) [][]float32 {
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		vec := make([]float32, hidden)
		var count float32
		for s := 0; s < seq; s++ {
			if mask[b*seq+s] == 0 {
				continue
			}
			count++
			base := (b*seq + s) * hidden
			for h := 0; h < hidden; h++ {
				vec[h] += data[base+h]
			}
		}
		if count > 0 {
			for h := range vec {
				vec[h] /= count
			}
		}
		out[b] = vec
	}
	return out
}

func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
