package metrics

import "math"

// RegressionScores compares predicted against actual values
func RegressionScores(actual, predicted []float64) Bundle {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	out := Bundle{MAE: 0, MSE: 0, RMSE: 0, R2: 0, DirectionalHits: 0}
	if n == 0 {
		return out
	}

	var absErr, sqErr float64
	var hits int
	for i := 0; i < n; i++ {
		diff := actual[i] - predicted[i]
		absErr += math.Abs(diff)
		sqErr += diff * diff
		if sign(actual[i]) == sign(predicted[i]) {
			hits++
		}
	}

	m := mean(actual[:n])
	var total float64
	for _, v := range actual[:n] {
		total += (v - m) * (v - m)
	}

	out[MAE] = absErr / float64(n)
	out[MSE] = sqErr / float64(n)
	out[RMSE] = math.Sqrt(out[MSE])
	if total > varianceEpsilon {
		out[R2] = 1 - sqErr/total
	}
	out[DirectionalHits] = float64(hits) / float64(n)
	return out
}

// ClassificationScores treats a label > 0 as the positive class
func ClassificationScores(actual, predicted []float64) Bundle {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	out := Bundle{Accuracy: 0, Precision: 0, Recall: 0, F1: 0}
	if n == 0 {
		return out
	}

	var correct, tp, fp, fn int
	for i := 0; i < n; i++ {
		a, p := sign(actual[i]), sign(predicted[i])
		if a == p {
			correct++
		}
		switch {
		case p > 0 && a > 0:
			tp++
		case p > 0 && a <= 0:
			fp++
		case p <= 0 && a > 0:
			fn++
		}
	}

	out[Accuracy] = float64(correct) / float64(n)
	if tp+fp > 0 {
		out[Precision] = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		out[Recall] = float64(tp) / float64(tp+fn)
	}
	if out[Precision]+out[Recall] > 0 {
		out[F1] = 2 * out[Precision] * out[Recall] / (out[Precision] + out[Recall])
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
