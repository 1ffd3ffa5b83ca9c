// Package batch drives transcript fetch-and-write for a list of videos.
//
// Items are processed strictly one after another: every fetch goes through
// the shared throttle.Throttler, and item i+1 is fetched only after item i has
// been fetched and written (or has failed). A failing item is recorded in the
// Report and never stops its siblings.
//
// Two output layouts are supported:
//
//	individual  one Markdown file per item inside the destination directory
//	aggregated  one Markdown file with a section per item
//
// Example usage:
//
//	th := throttle.New(throttle.DefaultConfig(), logger)
//	orch := batch.New(th, client, stream.NewWriter(stream.DefaultConfig(), logger), logger)
//	report, err := orch.Process(ctx, items, batch.ModeIndividual, "./transcripts")
package batch
