// Package checkin assembles the Puppet check-in results from the run report
// and Facter, and hands them to the Sal client.
package checkin

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"puppetcheckin/internal/logging"
	"puppetcheckin/internal/report"
	"puppetcheckin/internal/sal"
	"puppetcheckin/internal/summary"
)

// FactCollector gathers host facts.
type FactCollector interface {
	Collect(ctx context.Context) (sal.FactMap, error)
}

// Preferences looks up host preference values.
type Preferences interface {
	Bool(name string, def bool) bool
}

// Submitter accepts a module's results for the next check-in.
type Submitter interface {
	SetCheckinResults(module string, result sal.CheckinResult) error
}

// Module runs one Puppet check-in pass.
type Module struct {
	Fs         afero.Fs
	Facts      FactCollector
	Prefs      Preferences
	Submitter  Submitter
	Log        logging.Logger
	ReportPath string
	// ManagedItemsPref names the preference that enables managed item reporting.
	ManagedItemsPref string
}

// Run collects facts and managed items and submits them. Only a submission
// failure is returned; collection problems are logged and the pass continues
// with whatever data was gathered.
func (m *Module) Run(ctx context.Context) (*sal.CheckinResult, error) {
	start := time.Now()

	facts, err := m.Facts.Collect(ctx)
	if err != nil {
		m.Log.WithError(err).Warn("Failed to collect facts")
	}
	if facts == nil {
		facts = sal.FactMap{}
	}

	result := &sal.CheckinResult{Facts: facts}

	r, err := report.Read(m.Fs, m.ReportPath)
	switch {
	case errors.Is(err, report.ErrNoReport):
		m.Log.WithField("path", m.ReportPath).Debug("No run report, skipping managed items")
	case err != nil:
		m.Log.WithError(err).WithField("path", m.ReportPath).Error("Failed to read run report, skipping managed items")
	default:
		result.Facts = summary.Merge(result.Facts, summary.Build(r.Items, r.Time))
		if m.Prefs.Bool(m.ManagedItemsPref, true) {
			result.ManagedItems = r.Items
		} else {
			m.Log.WithField("preference", m.ManagedItemsPref).Debug("Managed items disabled")
		}
	}

	if err := m.Submitter.SetCheckinResults(sal.ModuleName, *result); err != nil {
		return result, errors.Wrap(err, "submit check-in results")
	}

	m.Log.WithField("facts", len(result.Facts)).
		WithField("managed_items", len(result.ManagedItems)).
		WithField("duration", time.Since(start)).
		Info("Check-in completed")
	return result, nil
}
