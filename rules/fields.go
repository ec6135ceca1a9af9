package rules

// fieldNames maps the logical names used in the rule table to the stored
// field names of a procedure record.
var fieldNames = map[string]string{
	"finalite":        "finalite_consultation",
	"statut_rp":       "statut_rapport_presentation",
	"numero_afpa":     "numero_afpa_consultation",
	"reprise_termine": "Reprise_au_statut_Termine",
}

// StoredFieldName returns the record field read for a logical field name.
// Names without a mapping are read as-is.
func StoredFieldName(logical string) string {
	if stored, ok := fieldNames[logical]; ok {
		return stored
	}
	return logical
}

// Resolve reads a logical field from record.
// The boolean is false when the field is absent.
func Resolve(record Record, logical string) (any, bool) {
	return resolveWith(mapLookup(record), logical)
}

// lookupFunc reads a stored field by name
type lookupFunc func(stored string) (any, bool)

func mapLookup(record Record) lookupFunc {
	return func(stored string) (any, bool) {
		if record == nil {
			return nil, false
		}
		v, ok := record[stored]
		return v, ok
	}
}

func resolveWith(lookup lookupFunc, logical string) (any, bool) {
	v, ok := lookup(StoredFieldName(logical))
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
