package detect

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/internal/onnx"
	"github.com/platekit/go-alpr/internal/tensor"
)

// Engine owns one loaded detector session.
type Engine struct {
	sess          *onnx.Session
	desc          catalog.Descriptor
	inputW        int
	inputH        int
	confThreshold float32
	iouThreshold  float32
	log           *logrus.Entry
}

// NewEngine loads the detector model at path into a session. The descriptor
// must declare its input size; zero thresholds fall back to the baselines.
func NewEngine(rt *onnx.Runtime, desc catalog.Descriptor, path string, confThreshold, iouThreshold float32, log *logrus.Entry) (*Engine, error) {
	w, h, ok := desc.InputSize()
	if !ok {
		return nil, fmt.Errorf("detect: model %q does not declare inputSize", desc.ID)
	}
	if confThreshold <= 0 {
		confThreshold = DefaultConfidenceThreshold
	}
	if iouThreshold <= 0 {
		iouThreshold = DefaultIoUThreshold
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	sess, err := rt.OpenSession(path)
	if err != nil {
		return nil, err
	}
	return &Engine{
		sess:          sess,
		desc:          desc,
		inputW:        w,
		inputH:        h,
		confThreshold: confThreshold,
		iouThreshold:  iouThreshold,
		log:           log.WithField("component", "detect").WithField("model", desc.ID),
	}, nil
}

// ModelID returns the id of the loaded detector model.
func (e *Engine) ModelID() string { return e.desc.ID }

// Detect runs one forward pass over img and decodes the output into plate
// boxes in img's coordinate space. Transient tensor handles are released by
// the session before this returns.
func (e *Engine) Detect(img image.Image) ([]Detection, error) {
	t := tensor.FromImage(img, e.inputW, e.inputH)
	raw, err := e.sess.Run(e.desc.InputName(), t.Shape, t.Data, e.desc.OutputName())
	if err != nil {
		return nil, fmt.Errorf("detect: inference: %w", err)
	}
	dets := Decode(raw, e.inputW, e.inputH, img.Bounds().Dx(), img.Bounds().Dy(),
		e.confThreshold, e.iouThreshold)
	e.log.WithField("detections", len(dets)).Debug("forward pass complete")
	return dets, nil
}

// Close releases the session.
func (e *Engine) Close() {
	e.sess.Close()
}
