package alpr

// Point is one integer pixel coordinate of a plate polygon.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Candidate is one alternative plate reading.
type Candidate struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RecognizedPlate is the external result shape handed to UI layers.
// Confidence is on a 0-100 scale; Coordinates is the plate polygon ordered
// top-left, top-right, bottom-right, bottom-left.
type RecognizedPlate struct {
	Plate            string      `json:"plate"`
	Confidence       float64     `json:"confidence"`
	Region           string      `json:"region"`
	Coordinates      [4]Point    `json:"coordinates"`
	ProcessingTimeMs int64       `json:"processingTimeMs"`
	RequestedTopN    int         `json:"requestedTopN"`
	Candidates       []Candidate `json:"candidates"`
}

// Configuration is the service configuration snapshot exposed to callers.
type Configuration struct {
	Provider               string `json:"provider"`
	ModelsLoaded           bool   `json:"modelsLoaded"`
	DetectorModelID        string `json:"detectorModelId"`
	OCRModelID             string `json:"ocrModelId"`
	AvailableDetectorCount int    `json:"availableDetectorCount"`
	AvailableOCRCount      int    `json:"availableOcrCount"`
}

// ConfigurationUpdate selects the active detector/OCR model pair.
type ConfigurationUpdate struct {
	DetectorModelID string `json:"detectorModelId"`
	OCRModelID      string `json:"ocrModelId"`
}
