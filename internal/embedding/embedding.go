// Package embedding wraps the 512-dim audio embedding model (C3 in
// spec §4.3) behind a small, mutex-gated inference API. Grounded on the
// teacher's sibling repo pattern for TFLite interpreters
// (tphakala/birdnet-go's internal/birdnet package): load a model once,
// serialize Invoke() calls behind a mutex since a tflite.Interpreter is
// not safe for concurrent use, and copy sample data directly into the
// input tensor's backing slice rather than marshaling.
package embedding

import (
	"context"
	"fmt"
	"sync"

	tflite "github.com/tphakala/go-tflite"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
)

// Dimension is the fixed embedding width (spec §3).
const Dimension = 512

// Model is a loaded embedding model. A single Model instance is shared
// across ingestion and vibe-lane query paths; Embed serializes access
// with an internal mutex since the underlying interpreter is not safe
// for concurrent Invoke calls.
type Model struct {
	interpreter *tflite.Interpreter
	model       *tflite.Model
	inputLen    int
	mu          sync.Mutex
}

// Load reads a .tflite model file from modelPath and allocates its
// interpreter with the given thread count.
func Load(modelPath string, threads int) (*Model, error) {
	tfliteModel := tflite.NewModelFromFile(modelPath)
	if tfliteModel == nil {
		return nil, apperr.New(apperr.CodeModelNotLoaded, fmt.Sprintf("failed to load embedding model at %s", modelPath), nil)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, userData any) {}, nil)

	interp := tflite.NewInterpreter(tfliteModel, options)
	if interp == nil {
		tfliteModel.Delete()
		return nil, apperr.New(apperr.CodeModelNotLoaded, "failed to create embedding model interpreter", nil)
	}

	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		tfliteModel.Delete()
		return nil, apperr.New(apperr.CodeModelNotLoaded, "failed to allocate embedding model tensors", nil)
	}

	input := interp.GetInputTensor(0)
	if input == nil {
		interp.Delete()
		tfliteModel.Delete()
		return nil, apperr.New(apperr.CodeModelNotLoaded, "embedding model has no input tensor", nil)
	}

	m := &Model{
		interpreter: interp,
		model:       tfliteModel,
		inputLen:    len(input.Float32s()),
	}
	return m, nil
}

// Close releases the interpreter and model resources.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
}

// Warmup runs a single zero-input inference so the first real request
// does not pay one-time lazy-initialization cost (spec §4.9, C11 cold
// start).
func (m *Model) Warmup(ctx context.Context) error {
	zeros := make([]float32, m.inputLen)
	_, err := m.embedLocked(zeros)
	return err
}

// Embed runs inference over mono PCM samples and returns the 512-dim
// embedding vector. Input shorter than the model's input length is
// padded with trailing silence; input longer than the model's input
// length is rejected with CodeValidation.
func (m *Model) Embed(ctx context.Context, pcm []float32) ([Dimension]float32, error) {
	var out [Dimension]float32
	if len(pcm) > m.inputLen {
		return out, apperr.New(apperr.CodeValidation,
			fmt.Sprintf("embedding input length %d exceeds model input length %d", len(pcm), m.inputLen), nil)
	}
	if len(pcm) < m.inputLen {
		padded := make([]float32, m.inputLen)
		copy(padded, pcm)
		pcm = padded
	}

	raw, err := m.embedLocked(pcm)
	if err != nil {
		return out, err
	}
	if len(raw) != Dimension {
		return out, apperr.New(apperr.CodeInternal,
			fmt.Sprintf("embedding model produced %d dims, want %d", len(raw), Dimension), nil)
	}
	copy(out[:], raw)
	return out, nil
}

func (m *Model) embedLocked(pcm []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter == nil {
		return nil, apperr.New(apperr.CodeModelNotLoaded, "embedding model is not loaded", nil)
	}

	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, apperr.New(apperr.CodeModelNotLoaded, "embedding model input tensor is unavailable", nil)
	}
	copy(input.Float32s(), pcm)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, apperr.New(apperr.CodeInternal, fmt.Sprintf("embedding model invoke failed: %v", status), nil)
	}

	output := m.interpreter.GetOutputTensor(0)
	if output == nil {
		return nil, apperr.New(apperr.CodeInternal, "embedding model produced no output tensor", nil)
	}

	result := make([]float32, len(output.Float32s()))
	copy(result, output.Float32s())
	return result, nil
}
