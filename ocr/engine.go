package ocr

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/internal/onnx"
	"github.com/platekit/go-alpr/internal/tensor"
)

// Default OCR input size when a model does not declare one.
const (
	defaultInputW = 94
	defaultInputH = 24
)

// Engine owns one loaded OCR session plus its decode configuration.
type Engine struct {
	sess    *onnx.Session
	desc    catalog.Descriptor
	charset []string
	mode    string
	inputW  int
	inputH  int
	log     *logrus.Entry
}

// NewEngine loads the OCR model at path. The charset comes with the model's
// configuration, not from this package.
func NewEngine(rt *onnx.Runtime, desc catalog.Descriptor, path string, charset []string, log *logrus.Entry) (*Engine, error) {
	if len(charset) == 0 {
		return nil, fmt.Errorf("ocr: model %q has no charset", desc.ID)
	}
	w, h, ok := desc.InputSize()
	if !ok {
		w, h = defaultInputW, defaultInputH
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	sess, err := rt.OpenSession(path)
	if err != nil {
		return nil, err
	}
	return &Engine{
		sess:    sess,
		desc:    desc,
		charset: charset,
		mode:    desc.DecodeMode(),
		inputW:  w,
		inputH:  h,
		log:     log.WithField("component", "ocr").WithField("model", desc.ID),
	}, nil
}

// ModelID returns the id of the loaded OCR model.
func (e *Engine) ModelID() string { return e.desc.ID }

// Read runs one forward pass over a cropped plate region and decodes the
// output into text. Transient tensor handles are released by the session
// before this returns.
func (e *Engine) Read(img image.Image) (Reading, error) {
	t := tensor.FromImage(img, e.inputW, e.inputH)
	raw, err := e.sess.Run(e.desc.InputName(), t.Shape, t.Data, e.desc.OutputName())
	if err != nil {
		return Reading{}, fmt.Errorf("ocr: inference: %w", err)
	}

	var reading Reading
	switch e.mode {
	case catalog.DecodePositional:
		reading = DecodePositional(raw, e.charset)
	default:
		reading = DecodeSequence(raw, e.charset)
	}
	e.log.WithField("text", reading.Text).Debug("forward pass complete")
	return reading, nil
}

// Close releases the session.
func (e *Engine) Close() {
	e.sess.Close()
}
