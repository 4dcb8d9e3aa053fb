// Package alpr recognizes license plates in photographs with two chained
// on-device ONNX inference stages: plate detection, then per-plate OCR.
// Models are downloaded, verified and stored locally; see the catalog,
// store and download packages.
package alpr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/download"
	"github.com/platekit/go-alpr/internal/config"
	"github.com/platekit/go-alpr/internal/onnx"
	"github.com/platekit/go-alpr/recognize"
	"github.com/platekit/go-alpr/store"
)

const provider = "onnx"

// ErrNotInitialized is returned by operations invoked before Initialize or
// after Dispose.
var ErrNotInitialized = errors.New("service not initialized")

// Service is the entry point consumed by UI/camera layers. All long-running
// operations (downloads, inference) block the calling goroutine only;
// callers are expected to run them off their primary thread.
type Service struct {
	cfg config.Config
	log *logrus.Entry

	loader recognize.Loader // test seam; nil means onnxruntime-backed

	mu          sync.Mutex
	initialized bool
	cat         *catalog.Catalog
	store       *store.Store
	downloads   *download.Manager
	recognizer  *recognize.Recognizer
}

// Option customizes service construction.
type Option func(*Service)

// WithLoader replaces the onnxruntime-backed engine loader.
func WithLoader(l recognize.Loader) Option {
	return func(s *Service) { s.loader = l }
}

// NewService builds an uninitialized service over cfg. Call Initialize
// before use.
func NewService(cfg config.Config, logger *logrus.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{
		cfg: cfg,
		log: logger.WithField("component", "alpr"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize prepares the catalog, store, download manager and recognizer.
// Idempotent: calling it on an initialized service is a no-op. If the
// configured default models are already downloaded they are activated;
// otherwise the service comes up with no models loaded.
func (s *Service) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	cat := catalog.Default()
	st, err := store.New(s.cfg.ModelsDir, cat)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	loader := s.loader
	if loader == nil {
		libPath := s.cfg.OnnxRuntimeLibPath
		if libPath == "" {
			libPath = DefaultLibraryPath()
		}
		rt, err := onnx.NewRuntime(libPath)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		loader = &recognize.ONNXLoader{
			Runtime:             rt,
			ConfidenceThreshold: s.cfg.ConfidenceThreshold,
			IoUThreshold:        s.cfg.IoUThreshold,
			Log:                 s.log,
		}
	}

	s.cat = cat
	s.store = st
	s.downloads = download.NewManager(cat, st, nil, s.log)
	s.recognizer = recognize.New(cat, st, loader, s.log)
	s.initialized = true

	if s.cfg.DetectorModel != "" && s.cfg.OCRModel != "" &&
		st.IsDownloaded(s.cfg.DetectorModel) && st.IsDownloaded(s.cfg.OCRModel) {
		if err := s.recognizer.SetModels(s.cfg.DetectorModel, s.cfg.OCRModel); err != nil {
			s.log.WithError(err).Warn("default models could not be activated")
		}
	}
	return nil
}

// IsInitialized reports whether Initialize has completed and Dispose has not
// been called since.
func (s *Service) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Catalog exposes the model registry, for model-management UIs.
func (s *Service) Catalog() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cat
}

// Store exposes the on-disk model store.
func (s *Service) Store() *store.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Downloads exposes the model acquisition service.
func (s *Service) Downloads() *download.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads
}

// RecognizePlatesFromFile reads the image at path and recognizes plates in
// it. Country and region are advisory: region is echoed into the results.
func (s *Service) RecognizePlatesFromFile(ctx context.Context, path, country, region string, topN int) ([]RecognizedPlate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return s.RecognizePlatesFromBytes(ctx, data, country, region, topN)
}

// RecognizePlatesFromBytes recognizes up to topN plates in the encoded
// image. With no detector/OCR pair loaded it fails with
// recognize.ErrNoModelLoaded rather than returning an empty list.
func (s *Service) RecognizePlatesFromBytes(ctx context.Context, imageBytes []byte, country, region string, topN int) ([]RecognizedPlate, error) {
	s.mu.Lock()
	rec := s.recognizer
	initialized := s.initialized
	s.mu.Unlock()
	if !initialized {
		return nil, ErrNotInitialized
	}

	started := time.Now()
	plates, err := rec.Recognize(ctx, imageBytes, topN)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"country": country,
		"region":  region,
		"plates":  len(plates),
		"elapsed": time.Since(started),
	}).Debug("recognition complete")

	out := make([]RecognizedPlate, 0, len(plates))
	for _, p := range plates {
		out = append(out, toExternal(p, region, topN))
	}
	return out, nil
}

// Configuration returns a snapshot of the active provider and model state.
func (s *Service) Configuration() Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := Configuration{Provider: provider}
	if !s.initialized {
		return cfg
	}
	cfg.DetectorModelID, cfg.OCRModelID = s.recognizer.Models()
	cfg.ModelsLoaded = s.recognizer.Loaded()
	for _, d := range s.cat.List(catalog.PurposeDetector) {
		if s.store.IsDownloaded(d.ID) {
			cfg.AvailableDetectorCount++
		}
	}
	for _, d := range s.cat.List(catalog.PurposeOCR) {
		if s.store.IsDownloaded(d.ID) {
			cfg.AvailableOCRCount++
		}
	}
	return cfg
}

// UpdateConfiguration activates the requested detector/OCR model pair. Ids
// that are not downloaded fail with recognize.ErrModelUnavailable and leave
// the previous sessions intact.
func (s *Service) UpdateConfiguration(u ConfigurationUpdate) error {
	s.mu.Lock()
	rec := s.recognizer
	initialized := s.initialized
	s.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}
	return rec.SetModels(u.DetectorModelID, u.OCRModelID)
}

// Dispose releases all inference sessions. Subsequent calls require
// re-Initialize.
func (s *Service) Dispose() {
	s.mu.Lock()
	rec := s.recognizer
	s.initialized = false
	s.recognizer = nil
	s.downloads = nil
	s.store = nil
	s.cat = nil
	s.mu.Unlock()
	if rec != nil {
		rec.Close()
	}
}

// toExternal converts an internal plate into the serialization-boundary
// shape: 0-100 confidence and a TL,TR,BR,BL polygon from the box corners.
func toExternal(p recognize.Plate, region string, topN int) RecognizedPlate {
	x1, y1, x2, y2 := p.Box[0], p.Box[1], p.Box[2], p.Box[3]
	return RecognizedPlate{
		Plate:      p.Text,
		Confidence: float64(p.Confidence) * 100,
		Region:     region,
		Coordinates: [4]Point{
			{X: x1, Y: y1},
			{X: x2, Y: y1},
			{X: x2, Y: y2},
			{X: x1, Y: y2},
		},
		ProcessingTimeMs: p.Elapsed.Milliseconds(),
		RequestedTopN:    topN,
		Candidates: []Candidate{
			{Text: p.Text, Confidence: float64(p.Confidence) * 100},
		},
	}
}
