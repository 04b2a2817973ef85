// Package vision defines the photo analysis surface used for quick car
// intake: point a camera at a model car, get the listing fields back.
package vision

import (
	"context"
	"io"
)

// AnalysisPrompt is the shared prompt used by all vision adapters.
const AnalysisPrompt = `Identify the diecast model car in this photo.
Provide: casting name, brand (e.g. Hot Wheels, Matchbox, Maisto), series
if visible on the card, main body color, and scale if determinable.
Respond in plain text, one car per line,
format: name | brand | series | color | scale`

// Analyzer turns a car photo into structured listing fields.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader, mimeType string) (*AnalysisResult, error)
}

type AnalysisResult struct {
	Cars        []DetectedCar
	RawResponse string
}

// DetectedCar holds the fields the model could read off the photo. Blank
// fields mean the model could not determine them.
type DetectedCar struct {
	Name   string
	Brand  string
	Series string
	Color  string
	Scale  string
}
