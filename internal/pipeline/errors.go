package pipeline

import "errors"

var (
	// ErrIdentificationFailed means the model could not produce candidate
	// conditions for the supplied symptom text. The pipeline halts; no
	// remedy stage runs.
	ErrIdentificationFailed = errors.New("could not identify conditions, retry with different phrasing")

	// ErrRemedyFailed means the remedy/diet response was missing one of its
	// mandatory fields. No partial result is ever returned.
	ErrRemedyFailed = errors.New("could not generate remedy and diet suggestions")
)
