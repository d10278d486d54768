package pipeline

import (
	"fmt"
	"time"

	"articleforge/internal/core"
)

// Stage names one step of the enhancement pipeline
type Stage string

const (
	StageValidate   Stage = "validate-id"
	StageFetch      Stage = "fetch-original"
	StageGuard      Stage = "guard"
	StageSearch     Stage = "search"
	StageExtract    Stage = "extract"
	StageSynthesize Stage = "synthesize"
	StageBuild      Stage = "build"
	StagePersist    Stage = "persist"
)

// Status is the terminal state of one enhancement
type Status string

const (
	StatusEnhanced Status = "enhanced"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// StageError records which stage stopped the pipeline
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Outcome is the result of enhancing one article
type Outcome struct {
	Status       Status
	ArticleID    string
	NewArticleID string
	Title        string
	References   []core.Reference
	// Stage is where a skipped or failed run stopped
	Stage    Stage
	Err      error
	Duration time.Duration
}

// Succeeded reports whether an enhanced article was stored
func (o Outcome) Succeeded() bool {
	return o.Status == StatusEnhanced
}

// Message is a one-line human readable summary of the outcome
func (o Outcome) Message() string {
	switch o.Status {
	case StatusEnhanced:
		return fmt.Sprintf("Enhanced %q as %s with %d references", o.Title, o.NewArticleID, len(o.References))
	case StatusSkipped:
		if o.Err != nil {
			return "Skipped: " + o.Err.Error()
		}
		return "Skipped"
	default:
		if o.Err != nil {
			return "Failed: " + o.Err.Error()
		}
		return "Failed"
	}
}
