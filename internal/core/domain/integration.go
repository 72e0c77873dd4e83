package domain

import "time"

// Integration defaults applied at registration.
const (
	DefaultIntegrationName = "Unknown Integration"
	DefaultSyncInterval    = 5 * time.Minute
)

// TransformType selects the rule applied by a Transformation.
type TransformType string

// Supported transformation types.
const (
	TransformMap       TransformType = "map"
	TransformFormat    TransformType = "format"
	TransformCalculate TransformType = "calculate"
	TransformFilter    TransformType = "filter"
)

// Valid reports whether t is a known transformation type.
func (t TransformType) Valid() bool {
	switch t {
	case TransformMap, TransformFormat, TransformCalculate, TransformFilter:
		return true
	}
	return false
}

// Transformation is a rule that derives TargetField from SourceField.
// Expression is interpreted per Type: a JSON lookup table for map, a
// template or precision for format, an arithmetic expression for
// calculate and a JSON condition for filter.
type Transformation struct {
	Type        TransformType `json:"type"`
	SourceField string        `json:"source_field"`
	TargetField string        `json:"target_field"`
	Expression  string        `json:"expression,omitempty"`
}

// Mapping copies SourceFields[i] to TargetFields[i] and then applies
// Transformations in order.
type Mapping struct {
	SourceFields    []string         `json:"source_fields"`
	TargetFields    []string         `json:"target_fields"`
	Transformations []Transformation `json:"transformations"`
}

// Integration binds one server's data to the unified schema.
type Integration struct {
	ID           string         `json:"id"`
	ServerID     string         `json:"server_id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Enabled      bool           `json:"enabled"`
	AutoSync     bool           `json:"auto_sync"`
	SyncInterval time.Duration  `json:"sync_interval"`
	Config       map[string]any `json:"config,omitempty"`
	Mapping      Mapping        `json:"mapping"`
	LastSync     time.Time      `json:"last_sync,omitempty"`
}

// Scheduled reports whether the integration should run on a timer.
func (i *Integration) Scheduled() bool {
	return i.Enabled && i.AutoSync && i.SyncInterval > 0
}
