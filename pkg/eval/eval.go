// Package eval measures classifier routing accuracy against a golden
// dataset of labeled queries.
package eval

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/omnihelp/switchboard/pkg/domain"
	"github.com/omnihelp/switchboard/pkg/ports"
)

//go:embed golden.json
var goldenJSON []byte

// Example is one labeled query in the golden dataset.
type Example struct {
	ID     string        `json:"id"`
	Query  string        `json:"query"`
	Intent domain.Intent `json:"intent"`
	Notes  string        `json:"notes"`
}

// Result is the outcome of classifying one example.
type Result struct {
	ID         string
	Query      string
	Expected   domain.Intent
	Predicted  domain.Intent
	Confidence float64
	Correct    bool
	Err        error
}

// GoldenDataset returns the embedded labeled examples.
func GoldenDataset() ([]Example, error) {
	var examples []Example
	if err := json.Unmarshal(goldenJSON, &examples); err != nil {
		return nil, fmt.Errorf("parsing golden dataset: %w", err)
	}
	return examples, nil
}

// RunDataset classifies every example and records the prediction. A
// classifier error counts as an incorrect prediction rather than aborting
// the run.
func RunDataset(ctx context.Context, classifier ports.Classifier, examples []Example) []Result {
	results := make([]Result, 0, len(examples))
	for _, ex := range examples {
		r := Result{
			ID:       ex.ID,
			Query:    ex.Query,
			Expected: ex.Intent,
		}
		judgment, err := classifier.Classify(ctx, nil, ex.Query)
		if err != nil {
			r.Err = err
		} else {
			r.Predicted = judgment.Intent
			r.Confidence = judgment.Confidence
			r.Correct = judgment.Intent == ex.Intent
		}
		results = append(results, r)
	}
	return results
}

// Accuracy computes the fraction of correct predictions.
func Accuracy(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	correct := 0
	for _, r := range results {
		if r.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(results))
}

// PerIntent computes accuracy broken down by expected intent.
func PerIntent(results []Result) map[domain.Intent]float64 {
	totals := make(map[domain.Intent]int)
	correct := make(map[domain.Intent]int)
	for _, r := range results {
		totals[r.Expected]++
		if r.Correct {
			correct[r.Expected]++
		}
	}
	acc := make(map[domain.Intent]float64, len(totals))
	for intent, n := range totals {
		acc[intent] = float64(correct[intent]) / float64(n)
	}
	return acc
}
