// Package gen runs generations against the loaded model, one at a time.
package gen

import "fmt"

// Temperature bounds accepted from callers.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// Request is a single generation, built per call and discarded afterwards.
type Request struct {
	Instruction string
	Language    string
	MaxTokens   int
	Temperature float64
}

// Validate checks the sampling bounds.
func (r Request) Validate() error {
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max_length must be greater than 0")
	}
	// NaN fails every comparison.
	if !(r.Temperature >= MinTemperature && r.Temperature <= MaxTemperature) {
		return fmt.Errorf("temperature must be between %g and %g", MinTemperature, MaxTemperature)
	}
	return nil
}
