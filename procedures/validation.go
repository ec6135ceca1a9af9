package procedures

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/liamcoop/marches/rules"
)

const (
	maxFields         = 200
	maxFieldNameLen   = 100
	maxBulkProcedures = 5000
)

var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateRecord checks the shape of a procedure record before it is stored.
// Values are not interpreted: a malformed date is kept and simply never
// satisfies a date condition.
func ValidateRecord(record rules.Record) error {
	if len(record) == 0 {
		return fmt.Errorf("record cannot be empty, must contain at least one field")
	}

	if len(record) > maxFields {
		return fmt.Errorf("record contains %d fields, maximum allowed is %d", len(record), maxFields)
	}

	for name, value := range record {
		if err := validateFieldName(name); err != nil {
			return fmt.Errorf("invalid field name %q: %w", name, err)
		}
		if !isScalar(value) {
			return fmt.Errorf("field %q has unsupported value of type %T (must be string, number, bool, date or null)", name, value)
		}
	}

	return nil
}

// ValidateBatch validates every record of a bulk import
func ValidateBatch(records []rules.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("batch cannot be empty")
	}
	if len(records) > maxBulkProcedures {
		return fmt.Errorf("batch contains %d records, maximum allowed is %d", len(records), maxBulkProcedures)
	}

	for i, r := range records {
		if err := ValidateRecord(r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// validateFieldName checks identifier shape and length (1-100 characters)
func validateFieldName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("field name cannot be empty")
	}
	if len(name) > maxFieldNameLen {
		return fmt.Errorf("field name length %d exceeds maximum of %d characters", len(name), maxFieldNameLen)
	}

	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}

	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number, time.Time:
		return true
	default:
		return false
	}
}
