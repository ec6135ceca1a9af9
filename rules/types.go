package rules

// Record is a procedure record as stored: raw field names mapped to
// string, number, bool, time or nil values.
type Record map[string]any

// StatusLabel is the lifecycle status computed for a procedure
type StatusLabel string

const (
	StatusTerminee         StatusLabel = "5 - Terminée"
	StatusNotification     StatusLabel = "4.4 - Notification en cours"
	StatusValidationRP     StatusLabel = "4.3 - Validation RP en cours"
	StatusAnalyse          StatusLabel = "4.2 - Analyse en cours"
	StatusAttenteOuverture StatusLabel = "4.1 - En attente de d'ouverture"
	StatusPubliee          StatusLabel = "3 - Publiée"
	StatusRedaction        StatusLabel = "2 - Rédaction"
	StatusInitiee          StatusLabel = "1 - Initiée"
)

// Operator is a leaf comparison operator
type Operator string

const (
	OpEq        Operator = "=="
	OpNe        Operator = "!="
	OpLt        Operator = "<"
	OpLe        Operator = "<="
	OpGt        Operator = ">"
	OpGe        Operator = ">="
	OpIn        Operator = "IN"
	OpIsNotNull Operator = "IS_NOT_NULL"
)

// Logic joins the children of a Combinator
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// Today is the literal that makes an ordering operator compare the field,
// parsed as a date, against the evaluation time.
const Today = "TODAY"

// Condition is a node of a condition tree: Leaf or Combinator.
type Condition interface {
	isCondition()
}

// Leaf compares one field against a literal.
// A Leaf with Default set always matches.
type Leaf struct {
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`
	Default  bool     `json:"default,omitempty"`
}

// Combinator joins child conditions with AND or OR
type Combinator struct {
	Operator Logic       `json:"operator"`
	Children []Condition `json:"children"`
}

func (Leaf) isCondition()       {}
func (Combinator) isCondition() {}

// All is shorthand for an AND combinator
func All(children ...Condition) Combinator {
	return Combinator{Operator: And, Children: children}
}

// Any is shorthand for an OR combinator
func Any(children ...Condition) Combinator {
	return Combinator{Operator: Or, Children: children}
}

// StatusRule assigns Status to records matching Condition.
// Rules have no rank of their own: the position in the table is the priority.
type StatusRule struct {
	Status    StatusLabel
	Condition Condition
}

// EvaluationResult contains the outcome of evaluating one status rule
type EvaluationResult struct {
	Rank       int
	Status     StatusLabel
	Expression string
	Matched    bool
	Error      error
	Trace      any // CEL evaluation state (optional)
}
