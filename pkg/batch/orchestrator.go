package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
	"github.com/Sternrassler/transcript-client/pkg/stream"
	"github.com/Sternrassler/transcript-client/pkg/throttle"
	"github.com/Sternrassler/transcript-client/pkg/transcript"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for batch runs.
var (
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_batch_runs_total",
		Help: "Total batch runs by mode",
	}, []string{"mode"})

	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcript_batch_items_total",
		Help: "Total batch items by outcome and error class",
	}, []string{"outcome", "error_class"})

	batchCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_batch_cache_hits_total",
		Help: "Total items served from cache without a host call",
	})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcript_batch_duration_seconds",
		Help:    "Batch run duration in seconds by mode",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"mode"})
)

// Orchestrator runs fetch-and-write for single items and batches. It holds no
// pacing state of its own; every fetch is delegated to the Throttler.
type Orchestrator struct {
	throttler *throttle.Throttler
	fetcher   transcript.Fetcher
	writer    *stream.Writer
	logger    zerolog.Logger

	now func() time.Time
}

// New creates an Orchestrator. The throttler must not be shared with another
// concurrent caller.
func New(throttler *throttle.Throttler, fetcher transcript.Fetcher, writer *stream.Writer, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		throttler: throttler,
		fetcher:   fetcher,
		writer:    writer,
		logger:    logger.With().Str("component", "batch").Logger(),
		now:       time.Now,
	}
}

// cachingFetcher is implemented by fetchers that keep a local cache.
// Lookup answers without contacting the host; Refresh always contacts it.
type cachingFetcher interface {
	Lookup(ctx context.Context, req transcript.Request) ([]transcript.Entry, bool)
	Refresh(ctx context.Context, req transcript.Request) ([]transcript.Entry, error)
}

// Fetch retrieves the entries of one item. The cache is consulted once,
// before throttling; host calls and their retries go through the Throttler.
func (o *Orchestrator) Fetch(ctx context.Context, item WorkItem) ([]transcript.Entry, error) {
	req := transcript.Request{ID: item.ID, Lang: item.Lang}

	fetch := o.fetcher.Fetch
	if c, ok := o.fetcher.(cachingFetcher); ok {
		if entries, hit := c.Lookup(ctx, req); hit {
			batchCacheHitsTotal.Inc()
			return entries, nil
		}
		fetch = c.Refresh
	}

	return throttle.Do(ctx, o.throttler, func(ctx context.Context) ([]transcript.Entry, error) {
		return fetch(ctx, req)
	})
}

// Save fetches one item and writes it to path. Unlike Process, failures are
// returned to the caller.
func (o *Orchestrator) Save(ctx context.Context, item WorkItem, path string) error {
	if err := validateItems([]WorkItem{item}); err != nil {
		return err
	}

	entries, err := o.Fetch(ctx, item)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", item.ID, err)
	}

	if err := o.writer.WriteStream(ctx, entries, path, itemHeader(item)); err != nil {
		return fmt.Errorf("save %s: %w", item.ID, err)
	}
	return nil
}

// Process runs a batch of 1..MaxItems items. In individual mode destination
// is a directory; in aggregated mode it is a file. Per-item failures are
// recorded in the report and never returned; an error is returned only when
// the input is invalid or the aggregated output cannot be opened.
func (o *Orchestrator) Process(ctx context.Context, items []WorkItem, mode Mode, destination string) (*Report, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	if mode != ModeIndividual && mode != ModeAggregated {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if destination == "" {
		return nil, ErrNoDestination
	}

	runID := ulid.Make().String()
	startedAt := o.now()
	logger := o.logger.With().
		Str("run_id", runID).
		Str("mode", string(mode)).
		Str("destination", destination).
		Logger()

	logger.Info().Int("items", len(items)).Msg("Starting batch")

	var (
		results []ItemResult
		err     error
	)
	if mode == ModeAggregated {
		results, err = o.processAggregated(ctx, logger, runID, startedAt, items, destination)
		if err != nil {
			return nil, err
		}
	} else {
		results = o.processIndividual(ctx, logger, items, destination)
	}

	duration := o.now().Sub(startedAt)
	report := newReport(runID, mode, destination, results, startedAt, duration)

	batchRunsTotal.WithLabelValues(string(mode)).Inc()
	batchDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
	for _, result := range report.Results {
		if result.Success {
			batchItemsTotal.WithLabelValues("succeeded", "").Inc()
		} else {
			batchItemsTotal.WithLabelValues("failed", string(result.ErrorClass)).Inc()
		}
	}

	logger.Info().
		Int("total", report.Total).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Dur("duration", duration).
		Msg("Batch complete")

	return report, nil
}

func (o *Orchestrator) processIndividual(ctx context.Context, logger zerolog.Logger, items []WorkItem, dir string) []ItemResult {
	names := newNameAllocator()
	results := make([]ItemResult, 0, len(items))

	for i, item := range items {
		start := o.now()
		path := filepath.Join(dir, names.next(item.ID))

		err := o.Save(ctx, item, path)
		result := o.result(item, path, err, o.now().Sub(start))
		results = append(results, result)

		logItem(logger, i, len(items), result)
	}

	return results
}

func (o *Orchestrator) processAggregated(
	ctx context.Context,
	logger zerolog.Logger,
	runID string,
	startedAt time.Time,
	items []WorkItem,
	path string,
) ([]ItemResult, error) {
	session, err := o.writer.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open aggregate output: %w", err)
	}

	_ = session.WriteString(batchHeader(runID, startedAt, len(items)))

	results := make([]ItemResult, 0, len(items))
	for i, item := range items {
		start := o.now()
		err := o.appendSection(ctx, session, item)
		result := o.result(item, path, err, o.now().Sub(start))
		results = append(results, result)

		logItem(logger, i, len(items), result)
	}

	if closeErr := session.Close(); closeErr != nil {
		logger.Error().Err(closeErr).Msg("Aggregate output lost")
		for i, result := range results {
			if result.Success {
				results[i] = o.result(items[i], path, errclass.WrapIO("aggregate output lost", closeErr), result.Duration)
			}
		}
	}

	return results, nil
}

// appendSection fetches one item and writes its section. The returned error
// is the item's failure, if any.
func (o *Orchestrator) appendSection(ctx context.Context, session *stream.Session, item WorkItem) error {
	if err := session.Err(); err != nil {
		return errclass.WrapIO("aggregate output unavailable", err)
	}

	entries, fetchErr := o.Fetch(ctx, item)
	if fetchErr != nil {
		_ = session.WriteString(sectionHeader(item, false))
		_ = session.WriteString(failureLine(fetchErr))
		_ = session.WriteString(sectionSeparator)
		return fmt.Errorf("fetch %s: %w", item.ID, fetchErr)
	}

	_ = session.WriteString(sectionHeader(item, true))
	_ = session.WriteEntries(ctx, entries)
	_ = session.WriteString(sectionSeparator)

	if err := session.Err(); err != nil {
		return errclass.WrapIO("write section", err)
	}
	return nil
}

func (o *Orchestrator) result(item WorkItem, path string, err error, duration time.Duration) ItemResult {
	result := ItemResult{
		ID:       item.ID,
		Label:    item.Label(),
		Duration: duration,
	}
	if err != nil {
		result.ErrorMessage = err.Error()
		result.ErrorClass = errclass.Classify(err)
		return result
	}

	result.Success = true
	result.OutputPath = path
	return result
}

func logItem(logger zerolog.Logger, index, total int, result ItemResult) {
	if result.Success {
		logger.Info().
			Str("video_id", result.ID).
			Int("item", index+1).
			Int("total", total).
			Str("output", result.OutputPath).
			Dur("duration", result.Duration).
			Msg("Item saved")
		return
	}

	logger.Warn().
		Str("video_id", result.ID).
		Int("item", index+1).
		Int("total", total).
		Str("error_class", string(result.ErrorClass)).
		Str("error", result.ErrorMessage).
		Msg("Item failed")
}
