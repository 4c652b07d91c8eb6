package forecast

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFitted = errors.New("model is not fitted")
	ErrSingular  = errors.New("normal equations are singular")
	ErrEmpty     = errors.New("empty training set")
)

// Task is the kind of target a model learns
type Task int

const (
	TaskRegression Task = iota
	TaskClassification
)

func (t Task) String() string {
	if t == TaskClassification {
		return "classification"
	}
	return "regression"
}

func ParseTask(s string) (Task, error) {
	switch strings.ToLower(s) {
	case "regression", "reg":
		return TaskRegression, nil
	case "classification", "class", "clf":
		return TaskClassification, nil
	}
	return TaskRegression, fmt.Errorf("unknown task %q", s)
}

// Model is a supervised learner over row-major features
type Model interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Factory returns a fresh, unfitted model on every call
type Factory func() Model

// Params is one hyperparameter combination
type Params map[string]float64

func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

func (p Params) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, ",")
}

// Builder turns a hyperparameter combination into a factory
type Builder func(Params) Factory

// RidgeBuilder reads "lambda" from the params
func RidgeBuilder(task Task) Builder {
	return func(p Params) Factory {
		lambda := p.Get("lambda", DefaultLambda)
		return NewFactory(task, lambda)
	}
}

// NewFactory builds ridge models for the task
func NewFactory(task Task, lambda float64) Factory {
	if task == TaskClassification {
		return func() Model { return NewRidgeClassifier(lambda) }
	}
	return func() Model { return NewRidgeRegressor(lambda) }
}
