package rules

import "time"

// statusRules is the status rule table, highest priority first.
// It is never modified after package initialisation.
var statusRules = []StatusRule{
	{
		Status: StatusTerminee,
		Condition: Any(
			Leaf{Field: "finalite", Operator: OpEq, Value: "Abandonnée"},
			Leaf{Field: "date_publication_donnees_essentielles", Operator: OpIsNotNull},
			All(
				Leaf{Field: "date_avis_attribution", Operator: OpIsNotNull},
				Leaf{Field: "finalite", Operator: OpIsNotNull},
				Leaf{Field: "finalite", Operator: OpNe, Value: "Attribuée"},
			),
			All(
				Leaf{Field: "type_marche", Operator: OpEq, Value: "Subséquent"},
				Leaf{Field: "finalite", Operator: OpIn, Value: []string{"Sans suite", "Infructueuse"}},
			),
			Leaf{Field: "reprise_termine", Operator: OpEq, Value: true},
		),
	},
	{
		Status:    StatusNotification,
		Condition: Leaf{Field: "statut_rp", Operator: OpEq, Value: "3-Validé"},
	},
	{
		Status:    StatusValidationRP,
		Condition: Leaf{Field: "statut_rp", Operator: OpIn, Value: []string{"2-En cours"}},
	},
	{
		Status: StatusAnalyse,
		Condition: All(
			Leaf{Field: "date_ouverture_offres", Operator: OpIsNotNull},
			Leaf{Field: "date_ouverture_offres", Operator: OpLe, Value: Today},
		),
	},
	{
		Status:    StatusAttenteOuverture,
		Condition: Leaf{Field: "date_remise_offres", Operator: OpLt, Value: Today},
	},
	{
		Status:    StatusPubliee,
		Condition: Leaf{Field: "date_publication", Operator: OpLe, Value: Today},
	},
	{
		Status: StatusRedaction,
		Condition: All(
			Leaf{Field: "date_publication", Operator: OpGt, Value: Today},
			Leaf{Field: "numero_afpa", Operator: OpIsNotNull},
		),
	},
	{
		Status:    StatusInitiee,
		Condition: Leaf{Default: true},
	},
}

// StatusRules returns a copy of the status rule table in priority order.
// The conditions are shared with the table and must not be modified.
func StatusRules() []StatusRule {
	out := make([]StatusRule, len(statusRules))
	copy(out, statusRules)
	return out
}

// Statuses returns every status label in priority order
func Statuses() []StatusLabel {
	labels := make([]StatusLabel, len(statusRules))
	for i, r := range statusRules {
		labels[i] = r.Status
	}
	return labels
}

// IsStatus reports whether label is one of the known status labels
func IsStatus(label StatusLabel) bool {
	for _, r := range statusRules {
		if r.Status == label {
			return true
		}
	}
	return false
}

// ComputeStatus returns the status of the first rule record satisfies at
// time now, falling back to StatusInitiee.
func ComputeStatus(record Record, now time.Time) StatusLabel {
	return firstMatch(statusRules, mapLookup(record), now)
}

func firstMatch(table []StatusRule, lookup lookupFunc, now time.Time) StatusLabel {
	for _, r := range table {
		if evaluateNode(lookup, r.Condition, now) {
			return r.Status
		}
	}
	return StatusInitiee
}
