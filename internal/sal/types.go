// Package sal defines the check-in data structures shared with the Sal client.
package sal

const (
	// ModuleName is the key this module's results are stored under.
	ModuleName = "Puppet"
	// Version identifies the shape of the data this module reports.
	Version = "1.0.0"
	// NoneValue replaces null fact values.
	NoneValue = "None"
)

// Status is the state of a managed item after the last Puppet run.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusError   Status = "ERROR"
)

// FactMap is a flat mapping of fact names to scalar values.
type FactMap map[string]any

// ItemData holds the per-item metadata reported alongside the status.
type ItemData struct {
	CorrectiveChange *bool `json:"corrective_change"`
}

// ManagedItem represents a single resource managed by Puppet.
type ManagedItem struct {
	DateManaged *string  `json:"date_managed"` // Nil if the report carried no time
	Status      Status   `json:"status"`
	Data        ItemData `json:"data"`
}

// RunReport is the parsed form of Puppet's last run report.
type RunReport struct {
	Time  *string
	Items map[string]ManagedItem
}

// CheckinResult is what the module hands to the check-in process.
type CheckinResult struct {
	Facts        FactMap                `json:"facts"`
	ManagedItems map[string]ManagedItem `json:"managed_items,omitempty"`
}

// IsValidModuleName validates that a module name contains only safe characters.
func IsValidModuleName(name string) bool {
	// Module names become keys in the shared results file
	const maxModuleNameLength = 100
	for _, r := range name {
		if (r < 'a' || r > 'z') &&
			(r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') &&
			r != '_' && r != '-' {
			return false
		}
	}
	return name != "" && len(name) <= maxModuleNameLength
}
