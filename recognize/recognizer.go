// Package recognize composes preprocessing, detection and OCR into the
// end-to-end "image in, plate results out" operation, and owns model
// swapping.
package recognize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/detect"
	"github.com/platekit/go-alpr/ocr"
	"github.com/platekit/go-alpr/store"
)

var (
	// ErrNoModelLoaded signals that Recognize was invoked with no active
	// detector/OCR session pair. Distinct from an empty result: nothing was
	// even attempted.
	ErrNoModelLoaded = errors.New("no model loaded")
	// ErrModelUnavailable signals a SetModels id that is not currently
	// downloaded and verified. The previous sessions stay active.
	ErrModelUnavailable = errors.New("model not available")
	// ErrImageDecode signals input bytes that are not a decodable raster
	// image.
	ErrImageDecode = errors.New("image decode failed")
)

// Detector is the loaded-detector capability the orchestrator consumes.
type Detector interface {
	ModelID() string
	Detect(img image.Image) ([]detect.Detection, error)
	Close()
}

// Reader is the loaded-OCR capability the orchestrator consumes.
type Reader interface {
	ModelID() string
	Read(img image.Image) (ocr.Reading, error)
	Close()
}

// Loader turns a verified model file into a live engine.
type Loader interface {
	LoadDetector(desc catalog.Descriptor, path string) (Detector, error)
	LoadReader(desc catalog.Descriptor, path string) (Reader, error)
}

// Plate is one recognized plate, internal shape.
type Plate struct {
	Text           string
	Confidence     float32 // OCR confidence in [0,1]
	DetectionScore float32
	Box            [4]int // x1,y1,x2,y2 in original-image pixels
	Elapsed        time.Duration
}

// Recognizer serializes access to the single active detector/OCR session
// pair. Sessions here do not support concurrent forward passes, so the
// mutex covers both inference and swaps: a session is only closed once no
// in-flight inference uses it.
type Recognizer struct {
	cat    *catalog.Catalog
	store  *store.Store
	loader Loader
	log    *logrus.Entry

	mu       sync.Mutex
	detector Detector
	reader   Reader
}

// New wires a recognizer. No models are loaded yet; callers select them via
// SetModels.
func New(cat *catalog.Catalog, st *store.Store, loader Loader, log *logrus.Entry) *Recognizer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Recognizer{
		cat:    cat,
		store:  st,
		loader: loader,
		log:    log.WithField("component", "recognize"),
	}
}

// SetModels loads and activates the given detector/OCR pair. Both ids must
// pass the store's downloaded check before anything is swapped; on any
// failure the previous sessions remain active (no partial swap).
func (r *Recognizer) SetModels(detectorID, ocrID string) error {
	detDesc, detPath, err := r.resolve(detectorID, catalog.PurposeDetector)
	if err != nil {
		return err
	}
	ocrDesc, ocrPath, err := r.resolve(ocrID, catalog.PurposeOCR)
	if err != nil {
		return err
	}

	newDetector, err := r.loader.LoadDetector(detDesc, detPath)
	if err != nil {
		return fmt.Errorf("load detector %q: %w", detectorID, err)
	}
	newReader, err := r.loader.LoadReader(ocrDesc, ocrPath)
	if err != nil {
		newDetector.Close()
		return fmt.Errorf("load ocr %q: %w", ocrID, err)
	}

	r.mu.Lock()
	oldDetector, oldReader := r.detector, r.reader
	r.detector, r.reader = newDetector, newReader
	r.mu.Unlock()

	if oldDetector != nil {
		oldDetector.Close()
	}
	if oldReader != nil {
		oldReader.Close()
	}
	r.log.WithFields(logrus.Fields{"detector": detectorID, "ocr": ocrID}).Info("models activated")
	return nil
}

func (r *Recognizer) resolve(id string, purpose catalog.Purpose) (catalog.Descriptor, string, error) {
	desc, ok := r.cat.Get(id)
	if !ok || desc.Purpose != purpose {
		return catalog.Descriptor{}, "", fmt.Errorf("%s model %q: %w", purpose, id, ErrModelUnavailable)
	}
	path, ok := r.store.PathFor(id)
	if !ok {
		return catalog.Descriptor{}, "", fmt.Errorf("%s model %q: %w", purpose, id, ErrModelUnavailable)
	}
	return desc, path, nil
}

// Models returns the ids of the active detector and OCR models, empty when
// none are loaded.
func (r *Recognizer) Models() (detectorID, ocrID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detector != nil {
		detectorID = r.detector.ModelID()
	}
	if r.reader != nil {
		ocrID = r.reader.ModelID()
	}
	return detectorID, ocrID
}

// Loaded reports whether a detector/OCR session pair is active.
func (r *Recognizer) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detector != nil && r.reader != nil
}

// Recognize decodes imageBytes, detects up to topN plates and reads each
// one. A single plate's OCR failure is logged and skipped; it never aborts
// the sibling plates. Detections that crop to zero area or read as empty
// text are dropped.
func (r *Recognizer) Recognize(ctx context.Context, imageBytes []byte, topN int) ([]Plate, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detector == nil || r.reader == nil {
		return nil, ErrNoModelLoaded
	}
	if topN <= 0 {
		return []Plate{}, nil
	}

	detections, err := r.detector.Detect(img)
	if err != nil {
		return nil, err
	}
	if len(detections) > topN {
		detections = detections[:topN]
	}

	plates := make([]Plate, 0, len(detections))
	for _, d := range detections {
		if err := ctx.Err(); err != nil {
			return plates, err
		}
		started := time.Now()

		region := cropRegion(img, d.Box)
		if region == nil {
			continue
		}
		reading, err := r.reader.Read(region)
		if err != nil {
			r.log.WithError(err).WithField("box", d.Box).Warn("plate read failed, skipping detection")
			continue
		}
		if strings.TrimSpace(reading.Text) == "" {
			continue
		}
		plates = append(plates, Plate{
			Text:           reading.Text,
			Confidence:     reading.Confidence,
			DetectionScore: d.Confidence,
			Box:            d.Box,
			Elapsed:        time.Since(started),
		})
	}
	return plates, nil
}

// Close releases the active sessions, if any.
func (r *Recognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.detector != nil {
		r.detector.Close()
		r.detector = nil
	}
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
}

// cropRegion copies the boxed subimage, clamped to img's bounds. Returns
// nil when the clamped region is empty.
func cropRegion(img image.Image, box [4]int) image.Image {
	r := image.Rect(box[0], box[1], box[2], box[3]).Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(out, out.Bounds(), img, r.Min, xdraw.Src)
	return out
}
