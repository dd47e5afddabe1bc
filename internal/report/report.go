// Package report reads Puppet's last run report and extracts the state of
// each managed resource.
package report

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"puppetcheckin/internal/sal"
)

// DefaultPath is where Puppet writes the report of its last run.
const DefaultPath = "/opt/puppetlabs/puppet/cache/state/last_run_report.yaml"

// ErrNoReport is returned when there is no run report to read.
var ErrNoReport = errors.New("no run report available")

type runReport struct {
	Time             *string                    `yaml:"time"`
	ResourceStatuses map[string]*resourceStatus `yaml:"resource_statuses"`
}

type resourceStatus struct {
	Resource         string  `yaml:"resource"`
	Time             *string `yaml:"time"`
	Skipped          bool    `yaml:"skipped"`
	Failed           bool    `yaml:"failed"`
	CorrectiveChange *bool   `yaml:"corrective_change"`
}

// Read loads the run report at path. A missing file yields ErrNoReport.
func Read(fs afero.Fs, path string) (*sal.RunReport, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoReport
		}
		return nil, errors.Wrapf(err, "read run report %s", path)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse run report %s", path)
	}
	return r, nil
}

// Parse decodes a run report document.
func Parse(data []byte) (*sal.RunReport, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	r := &sal.RunReport{Items: make(map[string]sal.ManagedItem)}
	if len(root.Content) == 0 {
		return r, nil
	}

	normalizeTags(&root)

	var doc runReport
	if err := root.Decode(&doc); err != nil {
		return nil, err
	}

	r.Time = doc.Time
	for key, status := range doc.ResourceStatuses {
		if status == nil {
			continue
		}
		id := status.Resource
		if id == "" {
			id = key
		}
		r.Items[id] = sal.ManagedItem{
			DateManaged: status.Time,
			Status:      classify(status),
			Data:        sal.ItemData{CorrectiveChange: status.CorrectiveChange},
		}
	}
	return r, nil
}

// classify maps a resource status onto the two reported states.
func classify(s *resourceStatus) sal.Status {
	if s.Skipped || s.Failed {
		return sal.StatusError
	}
	return sal.StatusPresent
}
