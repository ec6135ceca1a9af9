package procedures

import (
	"errors"
	"time"

	"github.com/liamcoop/marches/rules"
)

var (
	// ErrNotFound is returned when no procedure has the requested ID
	ErrNotFound = errors.New("procedure not found")

	// ErrAlreadyExists is returned when adding a procedure whose ID is taken
	ErrAlreadyExists = errors.New("procedure already exists")

	// ErrInvalidRecord is returned when a record fails validation
	ErrInvalidRecord = errors.New("invalid procedure record")
)

// Procedure is a stored procurement procedure.
// Data holds the raw record fields; the status is never stored.
type Procedure struct {
	ID        string       `json:"id"`
	Data      rules.Record `json:"data"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// View is a procedure together with the status computed when it was read
type View struct {
	*Procedure
	Statut rules.StatusLabel `json:"statut"`
}

func (p *Procedure) clone() *Procedure {
	if p == nil {
		return nil
	}
	c := *p
	c.Data = make(rules.Record, len(p.Data))
	for k, v := range p.Data {
		c.Data[k] = v
	}
	return &c
}
