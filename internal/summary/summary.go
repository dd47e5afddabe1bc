// Package summary derives aggregate facts from a Puppet run report.
package summary

import (
	"github.com/samber/lo"

	"puppetcheckin/internal/sal"
)

const (
	// ErrorsKey counts the managed items that failed or were skipped.
	ErrorsKey = "puppet_errors"
	// LastRunKey holds the time of the last Puppet run.
	LastRunKey = "last_puppet_run"
)

// Build returns the summary facts for items. LastRunKey is only set when
// reportTime is non-nil.
func Build(items map[string]sal.ManagedItem, reportTime *string) map[string]any {
	errorCount := lo.CountBy(lo.Values(items), func(item sal.ManagedItem) bool {
		return item.Status == sal.StatusError
	})

	summary := map[string]any{ErrorsKey: errorCount}
	if reportTime != nil {
		summary[LastRunKey] = *reportTime
	}
	return summary
}

// Merge returns facts with summary merged in. Summary values win.
func Merge(facts sal.FactMap, summary map[string]any) sal.FactMap {
	return lo.Assign(facts, sal.FactMap(summary))
}
