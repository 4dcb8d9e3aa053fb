package recognize

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/detect"
	"github.com/platekit/go-alpr/internal/onnx"
	"github.com/platekit/go-alpr/internal/util"
	"github.com/platekit/go-alpr/ocr"
)

// ONNXLoader builds live engines on the onnxruntime-backed sessions.
type ONNXLoader struct {
	Runtime             *onnx.Runtime
	ConfidenceThreshold float32
	IoUThreshold        float32
	Log                 *logrus.Entry
}

var _ Loader = (*ONNXLoader)(nil)

// LoadDetector opens a detector session for the verified model file at path.
func (l *ONNXLoader) LoadDetector(desc catalog.Descriptor, path string) (Detector, error) {
	return detect.NewEngine(l.Runtime, desc, path, l.ConfidenceThreshold, l.IoUThreshold, l.Log)
}

// LoadReader opens an OCR session for the verified model file at path. The
// vocabulary comes from the descriptor metadata, either inline ("charset")
// or from a file next to the model ("charsetFile").
func (l *ONNXLoader) LoadReader(desc catalog.Descriptor, path string) (Reader, error) {
	charset := desc.Charset()
	if charset == nil {
		file, ok := desc.Metadata["charsetFile"].(string)
		if !ok {
			return nil, fmt.Errorf("ocr model %q declares neither charset nor charsetFile", desc.ID)
		}
		loaded, err := util.LoadCharset(filepath.Join(filepath.Dir(path), file))
		if err != nil {
			return nil, err
		}
		charset = loaded
	}
	return ocr.NewEngine(l.Runtime, desc, path, charset, l.Log)
}
