package batch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
)

// MaxItems is the largest accepted batch.
const MaxItems = 50

// Batch validation errors.
var (
	ErrNoItems       = errors.New("batch has no items")
	ErrTooManyItems  = fmt.Errorf("batch exceeds %d items", MaxItems)
	ErrInvalidMode   = errors.New("invalid batch mode")
	ErrEmptyID       = errors.New("work item has an empty id")
	ErrNoDestination = errors.New("batch destination is required")
)

// Mode is the output layout of a batch.
type Mode string

const (
	// ModeIndividual writes one file per item into a directory.
	ModeIndividual Mode = "individual"

	// ModeAggregated writes every item into one shared file.
	ModeAggregated Mode = "aggregated"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeIndividual:
		return ModeIndividual, nil
	case ModeAggregated:
		return ModeAggregated, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidMode, s, ModeIndividual, ModeAggregated)
	}
}

// WorkItem is one video to fetch.
type WorkItem struct {
	// ID is the host's video identifier. It also names the output file.
	ID string `yaml:"id" json:"id"`

	// Lang is an optional transcript language.
	Lang string `yaml:"lang,omitempty" json:"lang,omitempty"`

	// Title is an optional human-readable label for headers.
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
}

// Label returns the title, or the ID when no title is set.
func (w WorkItem) Label() string {
	if title := strings.TrimSpace(w.Title); title != "" {
		return title
	}
	return w.ID
}

// ItemResult is the outcome of one WorkItem.
type ItemResult struct {
	ID    string `json:"id"`
	Label string `json:"label"`

	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`

	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorClass   errclass.Class `json:"error_class,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Report aggregates the results of one batch run.
type Report struct {
	RunID       string        `json:"run_id"`
	Mode        Mode          `json:"mode"`
	Destination string        `json:"destination"`
	Results     []ItemResult  `json:"results"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// FailedResults returns only the failed results.
func (r *Report) FailedResults() []ItemResult {
	var failed []ItemResult
	for _, result := range r.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// newReport builds the final report. Counts are derived from results.
func newReport(runID string, mode Mode, destination string, results []ItemResult, startedAt time.Time, duration time.Duration) *Report {
	report := &Report{
		RunID:       runID,
		Mode:        mode,
		Destination: destination,
		Results:     results,
		Total:       len(results),
		StartedAt:   startedAt,
		Duration:    duration,
	}
	for _, result := range results {
		if result.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	return report
}

func validateItems(items []WorkItem) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	if len(items) > MaxItems {
		return fmt.Errorf("%w: got %d", ErrTooManyItems, len(items))
	}
	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return fmt.Errorf("%w (index %d)", ErrEmptyID, i)
		}
	}
	return nil
}
