package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/errclass"
)

const sectionSeparator = "\n---\n\n"

// itemHeader is the leading block of an individual transcript file.
func itemHeader(item WorkItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript: %s\n\n", oneLine(item.Label()))
	fmt.Fprintf(&b, "Source: %s\n", item.ID)
	if item.Lang != "" {
		fmt.Fprintf(&b, "Language: %s\n", item.Lang)
	}
	b.WriteString(sectionSeparator)
	return b.String()
}

// batchHeader is the leading block of an aggregated file.
func batchHeader(runID string, generated time.Time, items int) string {
	var b strings.Builder
	b.WriteString("# Transcript Batch\n\n")
	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintf(&b, "Generated: %s\n", generated.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Items: %d\n", items)
	b.WriteString(sectionSeparator)
	return b.String()
}

// sectionHeader opens the section of one item in an aggregated file.
func sectionHeader(item WorkItem, success bool) string {
	status := "Success"
	if !success {
		status = "Failed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", oneLine(item.Label()))
	fmt.Fprintf(&b, "Source: %s\n", item.ID)
	fmt.Fprintf(&b, "Status: %s\n\n", status)
	return b.String()
}

// failureLine is the inline marker written instead of content.
func failureLine(err error) string {
	return fmt.Sprintf("Error: [%s] %s\n", errclass.Classify(err), oneLine(err.Error()))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
