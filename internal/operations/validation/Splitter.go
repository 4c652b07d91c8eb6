package validation

import "fmt"

// Splitter generates time-ordered train/test windows
type Splitter struct {
	Mode          Mode
	TrainMultiple int
}

func NewSplitter(mode Mode, trainMultiple int) Splitter {
	if trainMultiple <= 0 {
		trainMultiple = DefaultTrainMultiple
	}
	return Splitter{Mode: mode, TrainMultiple: trainMultiple}
}

// Split tiles nWindows test windows backward from the end of the series.
// Windows that would need train rows before index 0 are skipped.
func Split(n, nWindows int, testRatio float64) ([]Window, error) {
	return NewSplitter(ModeRolling, DefaultTrainMultiple).Split(n, nWindows, testRatio)
}

func (s Splitter) Split(n, nWindows int, testRatio float64) ([]Window, error) {
	if n <= 0 {
		return nil, fmt.Errorf("series length must be positive, got %d", n)
	}
	if nWindows <= 0 {
		return nil, fmt.Errorf("window count must be positive, got %d", nWindows)
	}
	if !(testRatio > 0 && testRatio < 1) {
		return nil, fmt.Errorf("test ratio must be in (0, 1), got %v", testRatio)
	}

	testSize := int(float64(n) * testRatio / float64(nWindows))
	if testSize < 1 {
		return nil, fmt.Errorf("%d rows with ratio %v across %d windows leaves no test rows", n, testRatio, nWindows)
	}

	multiple := s.TrainMultiple
	if multiple <= 0 {
		multiple = DefaultTrainMultiple
	}

	var backward []Window
	for k := 0; k < nWindows; k++ {
		testEnd := n - k*testSize
		testStart := testEnd - testSize

		trainStart := 0
		if s.Mode == ModeRolling {
			trainStart = testStart - multiple*testSize
		}
		if trainStart < 0 || testStart <= trainStart {
			continue
		}

		backward = append(backward, Window{
			TrainStart: trainStart,
			TrainEnd:   testStart,
			TestStart:  testStart,
			TestEnd:    testEnd,
		})
	}

	windows := make([]Window, len(backward))
	for i := range backward {
		w := backward[len(backward)-1-i]
		w.ID = i
		windows[i] = w
	}
	return windows, nil
}

// WalkForwardSplit steps fixed-size windows forward from the start of the
// series. step must be at least testSize so test ranges never overlap.
func WalkForwardSplit(n, trainSize, testSize, step int) ([]Window, error) {
	if trainSize < 1 || testSize < 1 {
		return nil, fmt.Errorf("train and test sizes must be positive, got %d and %d", trainSize, testSize)
	}
	if step < testSize {
		return nil, fmt.Errorf("step %d is smaller than test size %d", step, testSize)
	}

	var windows []Window
	for start := 0; start+trainSize+testSize <= n; start += step {
		windows = append(windows, Window{
			ID:         len(windows),
			TrainStart: start,
			TrainEnd:   start + trainSize,
			TestStart:  start + trainSize,
			TestEnd:    start + trainSize + testSize,
		})
	}
	return windows, nil
}
