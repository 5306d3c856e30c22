package models

// EngineConfig is what the settings panel sends to the backend. EdgeTPU is
// false when the acceleration toggle is absent.
type EngineConfig struct {
	Task    string `json:"task"`
	Model   string `json:"model"`
	EdgeTPU bool   `json:"edgetpu"`
}

// DetectionResult is one inference result from the remote server. Box is
// normalized [ymin, xmin, ymax, xmax] and empty for classification results.
type DetectionResult struct {
	Class      int       `json:"class"`
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

func (r DetectionResult) HasBox() bool {
	return len(r.Box) == 4
}

type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// PixelBox scales a normalized box to an image of the given size, clamped to
// [1, size].
func (r DetectionResult) PixelBox(width, height int) Box {
	clamp := func(v, hi int) int {
		if v < 1 {
			return 1
		}
		if v > hi {
			return hi
		}
		return v
	}

	return Box{
		Y1: clamp(int(r.Box[0]*float32(height)), height),
		X1: clamp(int(r.Box[1]*float32(width)), width),
		Y2: clamp(int(r.Box[2]*float32(height)), height),
		X2: clamp(int(r.Box[3]*float32(width)), width),
	}
}
