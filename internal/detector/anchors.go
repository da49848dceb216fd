package detector

// Anchor is a prior box size in input pixels
type Anchor struct {
	W, H float32
}

// Level describes one output head of the detector
type Level struct {
	Stride  int
	Output  string
	Anchors []Anchor
}

// DefaultLevels returns the three heads of the yolov7-face model
func DefaultLevels() []Level {
	return []Level{
		{Stride: 8, Output: "stride_8", Anchors: []Anchor{{4, 5}, {6, 8}, {10, 12}}},
		{Stride: 16, Output: "stride_16", Anchors: []Anchor{{15, 19}, {23, 30}, {39, 52}}},
		{Stride: 32, Output: "stride_32", Anchors: []Anchor{{72, 97}, {123, 164}, {209, 297}}},
	}
}

// OutputNames lists the tensor names the executor must produce
func OutputNames(levels []Level) []string {
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.Output
	}
	return names
}
