// Package onnx wraps the onnxruntime binding behind a small surface: a
// runtime that opens sessions and a session whose Run call creates, uses and
// destroys all transient tensor handles itself.
package onnx

import (
	"fmt"

	ort "github.com/getcharzp/onnxruntime_purego"
)

// Config carries runtime initialization state.
type Config struct {
	OnnxRuntimeLibPath string

	OnnxEngine     *ort.Engine
	SessionOptions *ort.SessionOptions
}

// New loads the onnxruntime shared library and prepares session options.
func (c *Config) New() error {
	if c.OnnxRuntimeLibPath == "" {
		return fmt.Errorf("onnx: runtime library path is required")
	}
	engine, err := ort.NewEngine(c.OnnxRuntimeLibPath)
	if err != nil {
		return fmt.Errorf("onnx: load runtime library: %w", err)
	}
	opts, err := engine.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("onnx: create session options: %w", err)
	}
	c.OnnxEngine = engine
	c.SessionOptions = opts
	return nil
}

// Runtime opens inference sessions from model files.
type Runtime struct {
	cfg Config
}

// NewRuntime initializes the onnxruntime library once for this process.
func NewRuntime(libPath string) (*Runtime, error) {
	cfg := Config{OnnxRuntimeLibPath: libPath}
	if err := cfg.New(); err != nil {
		return nil, err
	}
	return &Runtime{cfg: cfg}, nil
}

// OpenSession loads the model file at path into a live inference session.
// The caller owns the session and must Close it.
func (r *Runtime) OpenSession(path string) (*Session, error) {
	sess, err := r.cfg.OnnxEngine.NewSession(path, r.cfg.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("onnx: create session for %s: %w", path, err)
	}
	return &Session{sess: sess}, nil
}

// Session owns one live inference handle.
type Session struct {
	sess *ort.Session
}

// Run executes one forward pass. The input tensor and every output value are
// destroyed before Run returns, success or failure; only the copied float
// data escapes.
func (s *Session) Run(inputName string, shape []int64, data []float32, outputName string) ([]float32, error) {
	inputTensor, err := ort.NewTensor(shape, data)
	if err != nil {
		return nil, fmt.Errorf("onnx: create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputValues, err := s.sess.Run(map[string]*ort.Value{inputName: inputTensor})
	if err != nil {
		return nil, fmt.Errorf("onnx: run: %w", err)
	}
	for _, v := range outputValues {
		defer v.Destroy()
	}

	outputValue, ok := outputValues[outputName]
	if !ok {
		return nil, fmt.Errorf("onnx: output %q not produced by model", outputName)
	}
	out, err := ort.GetTensorData[float32](outputValue)
	if err != nil {
		return nil, fmt.Errorf("onnx: read output tensor: %w", err)
	}
	return out, nil
}

// Close releases the session.
func (s *Session) Close() {
	if s.sess != nil {
		s.sess.Destroy()
		s.sess = nil
	}
}
