// Package ocr runs the plate-reader session and decodes its output into
// text. Two output shapes are supported: CTC-style per-timestep sequences
// and fixed-position per-slot classifications.
package ocr

import "strings"

// blankIndex is the reserved CTC blank symbol, by convention the first
// charset entry.
const blankIndex = 0

// Reading is one decoded plate text with its confidence in [0,1].
type Reading struct {
	Text       string
	Confidence float32
}

// DecodeSequence greedily decodes CTC-style output: one probability vector
// of len(charset) per timestep. A symbol is emitted only when it is not the
// blank and differs from the immediately preceding raw symbol, so repeats
// collapse unless separated by a blank. Out-of-vocabulary indices are
// skipped silently. Leading/trailing whitespace is trimmed.
func DecodeSequence(raw []float32, charset []string) Reading {
	classes := len(charset)
	if classes == 0 {
		return Reading{}
	}
	steps := len(raw) / classes

	var sb strings.Builder
	var confSum float32
	var emitted int
	lastIdx := -1

	for i := 0; i < steps; i++ {
		idx, prob := argmax(raw[i*classes : (i+1)*classes])
		if idx != blankIndex && idx != lastIdx {
			if idx < len(charset) {
				sb.WriteString(charset[idx])
				confSum += prob
				emitted++
			}
		}
		lastIdx = idx
	}

	text := strings.TrimSpace(sb.String())
	if emitted == 0 || text == "" {
		return Reading{}
	}
	return Reading{Text: text, Confidence: clampUnit(confSum / float32(emitted))}
}

// DecodePositional decodes fixed-position output: one probability vector of
// len(charset) per character slot, each slot classified independently.
// Empty charset entries act as padding and emit nothing.
func DecodePositional(raw []float32, charset []string) Reading {
	classes := len(charset)
	if classes == 0 {
		return Reading{}
	}
	slots := len(raw) / classes

	var sb strings.Builder
	var confSum float32
	var emitted int

	for i := 0; i < slots; i++ {
		idx, prob := argmax(raw[i*classes : (i+1)*classes])
		if idx >= len(charset) || charset[idx] == "" {
			continue
		}
		sb.WriteString(charset[idx])
		confSum += prob
		emitted++
	}

	text := strings.TrimSpace(sb.String())
	if emitted == 0 || text == "" {
		return Reading{}
	}
	return Reading{Text: text, Confidence: clampUnit(confSum / float32(emitted))}
}

func argmax(probs []float32) (int, float32) {
	maxIdx := 0
	maxVal := float32(-1e9)
	for i, v := range probs {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx, maxVal
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
