package face

import "fmt"

// Aggregate combines encodings of the same subject into one representative
// encoding. A single input is returned as a copy; two or more are averaged
// elementwise. No input fails with ErrNoFaceDetected.
func Aggregate(encs []Encoding) (Encoding, error) {
	switch len(encs) {
	case 0:
		return Encoding{}, fmt.Errorf("aggregate: %w", ErrNoFaceDetected)
	case 1:
		return encs[0].Clone(), nil
	}

	first := encs[0]
	sum := make([]float64, first.Dim())
	for i, e := range encs {
		if err := first.CompatibleWith(e); err != nil {
			return Encoding{}, fmt.Errorf("aggregate input %d: %w", i, err)
		}
		for j, v := range e.Vector {
			sum[j] += float64(v)
		}
	}

	n := float64(len(encs))
	mean := make([]float32, len(sum))
	for j, s := range sum {
		mean[j] = float32(s / n)
	}
	return Encoding{Model: first.Model, Vector: mean}, nil
}
