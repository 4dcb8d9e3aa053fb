package catalog

const plateCharset = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// ctcCharset builds a CTC vocabulary: the reserved blank at index 0
// followed by one entry per plate character.
func ctcCharset() []string {
	out := make([]string, 0, len(plateCharset)+1)
	out = append(out, "")
	for _, r := range plateCharset {
		out = append(out, string(r))
	}
	return out
}

// positionalCharset has no blank reservation; every index maps directly to
// a character, with a trailing empty padding slot.
func positionalCharset() []string {
	out := make([]string, 0, len(plateCharset)+1)
	for _, r := range plateCharset {
		out = append(out, string(r))
	}
	return append(out, "")
}

// Default returns the built-in model registry.
func Default() *Catalog {
	c, err := New(
		Descriptor{
			ID:          "plate-det-384",
			Name:        "Plate detector (fast)",
			Description: "YOLO-style license plate detector, 384x384 input",
			URL:         "https://models.platekit.dev/detect/plate-det-384.onnx",
			SizeBytes:   12779520,
			Filename:    "plate-det-384.onnx",
			Purpose:     PurposeDetector,
			Metadata: map[string]any{
				"inputSize": []int{384, 384},
			},
		},
		Descriptor{
			ID:          "plate-det-640",
			Name:        "Plate detector (accurate)",
			Description: "YOLO-style license plate detector, 640x640 input",
			URL:         "https://models.platekit.dev/detect/plate-det-640.onnx",
			SizeBytes:   25493504,
			Filename:    "plate-det-640.onnx",
			Purpose:     PurposeDetector,
			Metadata: map[string]any{
				"inputSize": []int{640, 640},
			},
		},
		Descriptor{
			ID:          "plate-ocr-ctc",
			Name:        "Plate OCR (sequence)",
			Description: "LPRNet-style CTC plate reader, 94x24 input",
			URL:         "https://models.platekit.dev/ocr/plate-ocr-ctc.onnx",
			SizeBytes:   1949696,
			Filename:    "plate-ocr-ctc.onnx",
			Purpose:     PurposeOCR,
			Metadata: map[string]any{
				"inputSize":  []int{94, 24},
				"decodeMode": DecodeCTC,
				"charset":    ctcCharset(),
			},
		},
		Descriptor{
			ID:          "plate-ocr-slots",
			Name:        "Plate OCR (fixed slots)",
			Description: "Fixed-position plate classifier, 128x32 input",
			URL:         "https://models.platekit.dev/ocr/plate-ocr-slots.onnx",
			SizeBytes:   3075072,
			Filename:    "plate-ocr-slots.onnx",
			Purpose:     PurposeOCR,
			Metadata: map[string]any{
				"inputSize":  []int{128, 32},
				"decodeMode": DecodePositional,
				"charset":    positionalCharset(),
			},
		},
	)
	if err != nil {
		// Built-in descriptors are compile-time constants; a conflict here
		// is a programming error.
		panic(err)
	}
	return c
}
