package alpr

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platekit/go-alpr/catalog"
	"github.com/platekit/go-alpr/detect"
	"github.com/platekit/go-alpr/internal/config"
	"github.com/platekit/go-alpr/ocr"
	"github.com/platekit/go-alpr/recognize"
)

type stubDetector struct {
	id   string
	dets []detect.Detection
}

func (s *stubDetector) ModelID() string { return s.id }
func (s *stubDetector) Detect(image.Image) ([]detect.Detection, error) {
	return s.dets, nil
}
func (s *stubDetector) Close() {}

type stubReader struct {
	id      string
	reading ocr.Reading
}

func (s *stubReader) ModelID() string { return s.id }
func (s *stubReader) Read(image.Image) (ocr.Reading, error) {
	return s.reading, nil
}
func (s *stubReader) Close() {}

type stubLoader struct {
	dets    []detect.Detection
	reading ocr.Reading
}

func (l *stubLoader) LoadDetector(desc catalog.Descriptor, _ string) (recognize.Detector, error) {
	return &stubDetector{id: desc.ID, dets: l.dets}, nil
}

func (l *stubLoader) LoadReader(desc catalog.Descriptor, _ string) (recognize.Reader, error) {
	return &stubReader{id: desc.ID, reading: l.reading}, nil
}

// materialize fakes a downloaded model: a sparse file of exactly the
// descriptor's expected size.
func materialize(t *testing.T, dir string, d catalog.Descriptor) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, d.Filename))
	require.NoError(t, err)
	require.NoError(t, f.Truncate(d.SizeBytes))
	require.NoError(t, f.Close())
}

func testService(t *testing.T, loader recognize.Loader) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ModelsDir = dir
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewService(cfg, logger, WithLoader(loader)), dir
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInitializeIsIdempotent(t *testing.T) {
	svc, _ := testService(t, &stubLoader{})
	assert.False(t, svc.IsInitialized())

	require.NoError(t, svc.Initialize())
	require.NoError(t, svc.Initialize())
	assert.True(t, svc.IsInitialized())
}

func TestOperationsBeforeInitialize(t *testing.T) {
	svc, _ := testService(t, &stubLoader{})

	_, err := svc.RecognizePlatesFromBytes(context.Background(), testImage(t), "eu", "", 5)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, svc.UpdateConfiguration(ConfigurationUpdate{}), ErrNotInitialized)
}

func TestRecognizeWithoutModelsLoaded(t *testing.T) {
	svc, _ := testService(t, &stubLoader{})
	require.NoError(t, svc.Initialize())

	_, err := svc.RecognizePlatesFromBytes(context.Background(), testImage(t), "eu", "", 5)
	require.ErrorIs(t, err, recognize.ErrNoModelLoaded)
}

func TestUpdateConfigurationRejectsUnavailableModels(t *testing.T) {
	svc, _ := testService(t, &stubLoader{})
	require.NoError(t, svc.Initialize())

	err := svc.UpdateConfiguration(ConfigurationUpdate{
		DetectorModelID: "plate-det-384",
		OCRModelID:      "plate-ocr-ctc",
	})
	require.ErrorIs(t, err, recognize.ErrModelUnavailable)
	assert.False(t, svc.Configuration().ModelsLoaded)
}

func TestRecognizeEndToEnd(t *testing.T) {
	loader := &stubLoader{
		dets: []detect.Detection{
			{Box: [4]int{10, 20, 50, 40}, Confidence: 0.92},
		},
		reading: ocr.Reading{Text: "B99XYZ", Confidence: 0.85},
	}
	svc, dir := testService(t, loader)
	require.NoError(t, svc.Initialize())

	cat := svc.Catalog()
	det, _ := cat.Get("plate-det-384")
	ocrDesc, _ := cat.Get("plate-ocr-ctc")
	materialize(t, dir, det)
	materialize(t, dir, ocrDesc)

	require.NoError(t, svc.UpdateConfiguration(ConfigurationUpdate{
		DetectorModelID: "plate-det-384",
		OCRModelID:      "plate-ocr-ctc",
	}))

	plates, err := svc.RecognizePlatesFromBytes(context.Background(), testImage(t), "eu", "bw", 5)
	require.NoError(t, err)
	require.Len(t, plates, 1)

	p := plates[0]
	assert.Equal(t, "B99XYZ", p.Plate)
	assert.InDelta(t, 85.0, p.Confidence, 1e-6)
	assert.Equal(t, "bw", p.Region)
	assert.Equal(t, 5, p.RequestedTopN)
	assert.Equal(t, [4]Point{{10, 20}, {50, 20}, {50, 40}, {10, 40}}, p.Coordinates)
	require.Len(t, p.Candidates, 1)
	assert.Equal(t, "B99XYZ", p.Candidates[0].Text)
}

func TestRecognizeFromFile(t *testing.T) {
	loader := &stubLoader{
		dets:    []detect.Detection{{Box: [4]int{0, 0, 30, 20}, Confidence: 0.9}},
		reading: ocr.Reading{Text: "K1234", Confidence: 0.7},
	}
	svc, dir := testService(t, loader)
	require.NoError(t, svc.Initialize())

	cat := svc.Catalog()
	det, _ := cat.Get("plate-det-384")
	ocrDesc, _ := cat.Get("plate-ocr-ctc")
	materialize(t, dir, det)
	materialize(t, dir, ocrDesc)
	require.NoError(t, svc.UpdateConfiguration(ConfigurationUpdate{
		DetectorModelID: "plate-det-384",
		OCRModelID:      "plate-ocr-ctc",
	}))

	imgPath := filepath.Join(t.TempDir(), "car.png")
	require.NoError(t, os.WriteFile(imgPath, testImage(t), 0o644))

	plates, err := svc.RecognizePlatesFromFile(context.Background(), imgPath, "eu", "", 3)
	require.NoError(t, err)
	require.Len(t, plates, 1)
	assert.Equal(t, "K1234", plates[0].Plate)

	_, err = svc.RecognizePlatesFromFile(context.Background(), filepath.Join(dir, "missing.png"), "eu", "", 3)
	require.Error(t, err)
}

func TestConfigurationSnapshot(t *testing.T) {
	svc, dir := testService(t, &stubLoader{})
	require.NoError(t, svc.Initialize())

	cfg := svc.Configuration()
	assert.Equal(t, "onnx", cfg.Provider)
	assert.False(t, cfg.ModelsLoaded)
	assert.Zero(t, cfg.AvailableDetectorCount)
	assert.Zero(t, cfg.AvailableOCRCount)

	cat := svc.Catalog()
	det, _ := cat.Get("plate-det-384")
	ocrDesc, _ := cat.Get("plate-ocr-ctc")
	materialize(t, dir, det)
	materialize(t, dir, ocrDesc)

	cfg = svc.Configuration()
	assert.Equal(t, 1, cfg.AvailableDetectorCount)
	assert.Equal(t, 1, cfg.AvailableOCRCount)

	require.NoError(t, svc.UpdateConfiguration(ConfigurationUpdate{
		DetectorModelID: "plate-det-384",
		OCRModelID:      "plate-ocr-ctc",
	}))
	cfg = svc.Configuration()
	assert.True(t, cfg.ModelsLoaded)
	assert.Equal(t, "plate-det-384", cfg.DetectorModelID)
	assert.Equal(t, "plate-ocr-ctc", cfg.OCRModelID)
}

func TestInitializeActivatesDownloadedDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ModelsDir = dir
	for _, d := range catalog.Default().List("") {
		if d.ID == cfg.DetectorModel || d.ID == cfg.OCRModel {
			materialize(t, dir, d)
		}
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	svc := NewService(cfg, logger, WithLoader(&stubLoader{}))
	require.NoError(t, svc.Initialize())
	assert.True(t, svc.Configuration().ModelsLoaded)
}

func TestDisposeReleasesAndRequiresReinitialize(t *testing.T) {
	svc, _ := testService(t, &stubLoader{})
	require.NoError(t, svc.Initialize())
	require.True(t, svc.IsInitialized())

	svc.Dispose()
	assert.False(t, svc.IsInitialized())
	_, err := svc.RecognizePlatesFromBytes(context.Background(), testImage(t), "eu", "", 5)
	require.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, svc.Initialize())
	assert.True(t, svc.IsInitialized())
}
