// Package detect runs the plate detector session and decodes its raw output
// into confidence-filtered, NMS-deduplicated bounding boxes in original
// image coordinates.
package detect

import "sort"

// Baseline thresholds; engines can override per model via configuration.
const (
	DefaultConfidenceThreshold float32 = 0.3
	DefaultIoUThreshold        float32 = 0.5
)

// candidateStride is the width of one raw candidate record:
// (centerX, centerY, width, height, confidence).
const candidateStride = 5

// Detection is one plate bounding box in original-image pixel coordinates,
// ordered x1,y1,x2,y2.
type Detection struct {
	Box        [4]int
	Confidence float32
}

type box struct {
	x1, y1, x2, y2 float32
	conf           float32
}

// Decode turns the raw detector output into detections. Candidates are
// (cx,cy,w,h,conf) in model-input space; they are threshold-filtered,
// converted to corners, rescaled to the original image with independent
// x/y factors, clamped, de-degenerated, sorted by confidence and run
// through greedy NMS. Suppressed boxes are discarded, not merged.
func Decode(raw []float32, inputW, inputH, origW, origH int, confThreshold, iouThreshold float32) []Detection {
	scaleX := float32(origW) / float32(inputW)
	scaleY := float32(origH) / float32(inputH)

	var candidates []box
	for i := 0; i+candidateStride <= len(raw); i += candidateStride {
		conf := raw[i+4]
		if conf < confThreshold {
			continue
		}
		cx, cy, w, h := raw[i], raw[i+1], raw[i+2], raw[i+3]

		b := box{
			x1:   clamp((cx-w/2)*scaleX, 0, float32(origW)),
			y1:   clamp((cy-h/2)*scaleY, 0, float32(origH)),
			x2:   clamp((cx+w/2)*scaleX, 0, float32(origW)),
			y2:   clamp((cy+h/2)*scaleY, 0, float32(origH)),
			conf: conf,
		}
		if b.x2 <= b.x1 || b.y2 <= b.y1 {
			continue
		}
		candidates = append(candidates, b)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].conf > candidates[j].conf
	})

	var kept []box
	for _, c := range candidates {
		suppressed := false
		for _, k := range kept {
			if iou(c, k) >= iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}

	out := make([]Detection, 0, len(kept))
	for _, b := range kept {
		out = append(out, Detection{
			Box:        [4]int{int(b.x1), int(b.y1), int(b.x2), int(b.y2)},
			Confidence: b.conf,
		})
	}
	return out
}

func iou(a, b box) float32 {
	ix1 := max(a.x1, b.x1)
	iy1 := max(a.y1, b.y1)
	ix2 := min(a.x2, b.x2)
	iy2 := min(a.y2, b.y2)

	iw := max(ix2-ix1, 0)
	ih := max(iy2-iy1, 0)
	inter := iw * ih

	areaA := (a.x2 - a.x1) * (a.y2 - a.y1)
	areaB := (b.x2 - b.x1) * (b.y2 - b.y1)

	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
