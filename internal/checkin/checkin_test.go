package checkin

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"puppetcheckin/internal/config"
	"puppetcheckin/internal/logging"
	"puppetcheckin/internal/report"
	"puppetcheckin/internal/results"
	"puppetcheckin/internal/sal"
	"puppetcheckin/internal/summary"
)

const runReport = `--- !ruby/object:Puppet::Transaction::Report
time: '2019-05-21T14:32:18.123-07:00'
resource_statuses:
  File[/etc/motd]: !ruby/object:Puppet::Resource::Status
    resource: File[/etc/motd]
    time: '2019-05-21T14:32:18.614-07:00'
    failed: false
    skipped: false
    corrective_change: true
  Package[ntp]: !ruby/object:Puppet::Resource::Status
    resource: Package[ntp]
    time: '2019-05-21T14:32:18.700-07:00'
    failed: true
    skipped: false
    corrective_change: false
`

type fakeFacts struct {
	facts sal.FactMap
	err   error
}

func (f *fakeFacts) Collect(context.Context) (sal.FactMap, error) {
	return f.facts, f.err
}

type fakePrefs map[string]bool

func (p fakePrefs) Bool(name string, def bool) bool {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

type fakeSubmitter struct {
	module string
	result sal.CheckinResult
	calls  int
	err    error
}

func (s *fakeSubmitter) SetCheckinResults(module string, result sal.CheckinResult) error {
	s.calls++
	s.module = module
	s.result = result
	return s.err
}

func testModule(t *testing.T, reportYAML string, facts *fakeFacts, prefs fakePrefs) (*Module, *fakeSubmitter) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if reportYAML != "" {
		require.NoError(t, afero.WriteFile(fs, report.DefaultPath, []byte(reportYAML), 0o600))
	}
	sub := &fakeSubmitter{}
	return &Module{
		Fs:               fs,
		Facts:            facts,
		Prefs:            prefs,
		Submitter:        sub,
		Log:              logging.Discard(),
		ReportPath:       report.DefaultPath,
		ManagedItemsPref: config.ManagedItemsKey,
	}, sub
}

func TestRun(t *testing.T) {
	m, sub := testModule(t, runReport, &fakeFacts{facts: sal.FactMap{"kernel": "Linux"}}, nil)

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, sal.ModuleName, sub.module)
	assert.Equal(t, *result, sub.result)

	assert.Equal(t, sal.FactMap{
		"kernel":           "Linux",
		summary.ErrorsKey:  1,
		summary.LastRunKey: "2019-05-21T14:32:18.123-07:00",
	}, result.Facts)

	require.Len(t, result.ManagedItems, 2)
	assert.Equal(t, sal.StatusPresent, result.ManagedItems["File[/etc/motd]"].Status)
	assert.Equal(t, sal.StatusError, result.ManagedItems["Package[ntp]"].Status)
}

func TestRunWithoutReport(t *testing.T) {
	m, sub := testModule(t, "", &fakeFacts{facts: sal.FactMap{"kernel": "Linux"}}, nil)

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sal.FactMap{"kernel": "Linux"}, result.Facts)
	assert.Empty(t, result.ManagedItems)
	assert.Equal(t, 1, sub.calls)
}

func TestRunWithoutFacter(t *testing.T) {
	m, _ := testModule(t, runReport, &fakeFacts{facts: sal.FactMap{}}, nil)

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Facts[summary.ErrorsKey])
	assert.Len(t, result.ManagedItems, 2)
}

func TestRunFactsFailure(t *testing.T) {
	m, sub := testModule(t, runReport, &fakeFacts{err: errors.New("puppet exited with code 1")}, nil)

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, result.Facts)
	assert.Len(t, result.ManagedItems, 2)
	assert.Equal(t, 1, sub.calls)
}

func TestRunMalformedReport(t *testing.T) {
	m, sub := testModule(t, "resource_statuses: [unclosed\n", &fakeFacts{facts: sal.FactMap{"kernel": "Linux"}}, nil)

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sal.FactMap{"kernel": "Linux"}, result.Facts)
	assert.Empty(t, result.ManagedItems)
	assert.Equal(t, 1, sub.calls)
}

func TestRunManagedItemsDisabled(t *testing.T) {
	prefs := fakePrefs{config.ManagedItemsKey: false}
	m, _ := testModule(t, runReport, &fakeFacts{facts: sal.FactMap{}}, prefs)

	result, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.ManagedItems)
	assert.Equal(t, 1, result.Facts[summary.ErrorsKey])
}

func TestRunSubmitFailure(t *testing.T) {
	m, sub := testModule(t, "", &fakeFacts{facts: sal.FactMap{}}, nil)
	sub.err = errors.New("disk full")

	_, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunWritesResultsFile(t *testing.T) {
	m, _ := testModule(t, runReport, &fakeFacts{facts: sal.FactMap{"kernel": "Linux"}}, nil)
	store := results.New(m.Fs, results.DefaultPath, logging.Discard())
	m.Submitter = store

	_, err := m.Run(context.Background())
	require.NoError(t, err)

	data, err := afero.ReadFile(m.Fs, results.DefaultPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Puppet": {
			"facts": {
				"kernel": "Linux",
				"puppet_errors": 1,
				"last_puppet_run": "2019-05-21T14:32:18.123-07:00"
			},
			"managed_items": {
				"File[/etc/motd]": {
					"date_managed": "2019-05-21T14:32:18.614-07:00",
					"status": "PRESENT",
					"data": {"corrective_change": true}
				},
				"Package[ntp]": {
					"date_managed": "2019-05-21T14:32:18.700-07:00",
					"status": "ERROR",
					"data": {"corrective_change": false}
				}
			}
		}
	}`, string(data))
}
