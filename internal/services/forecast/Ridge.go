package forecast

import (
	"fmt"
	"math"
)

const DefaultLambda = 1.0

// RidgeRegressor is L2-regularized least squares on standardized features
type RidgeRegressor struct {
	Lambda float64

	means     []float64
	scales    []float64
	weights   []float64
	intercept float64
	fitted    bool
}

func NewRidgeRegressor(lambda float64) *RidgeRegressor {
	if lambda < 0 || math.IsNaN(lambda) {
		lambda = DefaultLambda
	}
	return &RidgeRegressor{Lambda: lambda}
}

func (m *RidgeRegressor) Fit(X [][]float64, y []float64) error {
	d, err := checkMatrix(X)
	if err != nil {
		return err
	}
	if len(y) != len(X) {
		return fmt.Errorf("target length %d does not match %d rows", len(y), len(X))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite target at row %d", i)
		}
	}

	n := float64(len(X))
	m.means = make([]float64, d)
	m.scales = make([]float64, d)
	for _, row := range X {
		for j, v := range row {
			m.means[j] += v / n
		}
	}
	for _, row := range X {
		for j, v := range row {
			m.scales[j] += (v - m.means[j]) * (v - m.means[j]) / n
		}
	}
	for j := range m.scales {
		m.scales[j] = math.Sqrt(m.scales[j])
		if m.scales[j] < 1e-12 {
			m.scales[j] = 1
		}
	}

	yMean := 0.0
	for _, v := range y {
		yMean += v / n
	}

	// (ZᵀZ + λI) w = Zᵀ(y - ȳ)
	a := make([][]float64, d)
	for j := range a {
		a[j] = make([]float64, d)
	}
	b := make([]float64, d)
	z := make([]float64, d)
	for i, row := range X {
		for j, v := range row {
			z[j] = (v - m.means[j]) / m.scales[j]
		}
		for j := 0; j < d; j++ {
			b[j] += z[j] * (y[i] - yMean)
			for k := j; k < d; k++ {
				a[j][k] += z[j] * z[k]
			}
		}
	}
	for j := 0; j < d; j++ {
		a[j][j] += m.Lambda
		for k := 0; k < j; k++ {
			a[j][k] = a[k][j]
		}
	}

	w, err := solve(a, b)
	if err != nil {
		return err
	}

	m.weights = w
	m.intercept = yMean
	m.fitted = true
	return nil
}

func (m *RidgeRegressor) Predict(X [][]float64) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.weights) {
			return nil, fmt.Errorf("row %d has %d features, model has %d", i, len(row), len(m.weights))
		}
		v := m.intercept
		for j, x := range row {
			v += m.weights[j] * (x - m.means[j]) / m.scales[j]
		}
		out[i] = v
	}
	return out, nil
}

// Weights returns the coefficients in standardized feature space
func (m *RidgeRegressor) Weights() []float64 {
	return append([]float64(nil), m.weights...)
}

// RidgeClassifier regresses on signed labels and predicts the sign
type RidgeClassifier struct {
	reg *RidgeRegressor
}

func NewRidgeClassifier(lambda float64) *RidgeClassifier {
	return &RidgeClassifier{reg: NewRidgeRegressor(lambda)}
}

func (c *RidgeClassifier) Fit(X [][]float64, y []float64) error {
	labels := make([]float64, len(y))
	for i, v := range y {
		labels[i] = signum(v)
	}
	return c.reg.Fit(X, labels)
}

func (c *RidgeClassifier) Predict(X [][]float64) ([]float64, error) {
	raw, err := c.reg.Predict(X)
	if err != nil {
		return nil, err
	}
	for i, v := range raw {
		raw[i] = signum(v)
	}
	return raw, nil
}

func checkMatrix(X [][]float64) (int, error) {
	if len(X) == 0 {
		return 0, ErrEmpty
	}
	d := len(X[0])
	if d == 0 {
		return 0, fmt.Errorf("rows have no features")
	}
	for i, row := range X {
		if len(row) != d {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), d)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("non-finite feature at row %d col %d", i, j)
			}
		}
	}
	return d, nil
}

// solve runs Gaussian elimination with partial pivoting. a and b are
// overwritten.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[r][k] -= f * a[col][k]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for k := r + 1; k < n; k++ {
			sum -= a[r][k] * x[k]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
