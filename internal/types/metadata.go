package types

import (
	"database/sql/driver"
	"encoding/json"

	ierr "github.com/flexprice/membership/internal/errors"
	"github.com/samber/lo"
)

// Metadata is the free-form key/value bag attached to history entries, stored as JSONB
type Metadata map[string]string

// Scan reads a JSONB column. NULL becomes an empty map.
func (m *Metadata) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ierr.NewError("unsupported metadata column type").
			WithReportableDetails(map[string]interface{}{"value": value}).
			Mark(ierr.ErrDatabase)
	}

	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return ierr.WithError(err).
			WithHint("Stored metadata is not valid JSON").
			Mark(ierr.ErrDatabase)
	}
	*m = out
	return nil
}

// Value writes the map as JSON, never as NULL
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(m))
}

// Merge copies non-empty values from other into m, overwriting existing keys
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		m = Metadata{}
	}
	for k, v := range lo.PickBy(other, func(_ string, v string) bool { return v != "" }) {
		m[k] = v
	}
	return m
}
