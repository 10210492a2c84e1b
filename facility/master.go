/*
Package facility holds the business entities of the facility-services domain.

PURPOSE:
  Clients order jobs (projects) of a given service; workers are assigned to
  projects and may be blamed for trouble on one; work orders are the printed
  instructions for a job; sales targets are the yearly/monthly revenue goals.

  Entities are plain structs. Each converts to and from generic.Record so the
  storage layer can stay table-agnostic, and each validates its own
  invariants so they hold no matter which caller writes.

SEE ALSO:
  - generic/records.go: table vocabulary
  - store/sqlite:       persistence
*/
package facility

import (
	"strings"
	"time"

	"github.com/tcworks/tcmanage/generic"
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is a customer that orders projects.
type Client struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Note         string    `json:"note"`
	HasDrawings  bool      `json:"has_drawings"`
	HasDocuments bool      `json:"has_documents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return generic.Invalid("client", "name", "required")
	}
	return nil
}

// Record returns the writable columns. id and timestamps are owned by the
// database.
func (c Client) Record() generic.Record {
	return generic.Record{
		"name":          strings.TrimSpace(c.Name),
		"address":       c.Address,
		"phone":         c.Phone,
		"email":         c.Email,
		"note":          c.Note,
		"has_drawings":  generic.FlagValue(c.HasDrawings),
		"has_documents": generic.FlagValue(c.HasDocuments),
	}
}

func ClientFromRecord(r generic.Record) Client {
	return Client{
		ID:           r.Int64("id"),
		Name:         r.String("name"),
		Address:      r.String("address"),
		Phone:        r.String("phone"),
		Email:        r.String("email"),
		Note:         r.String("note"),
		HasDrawings:  r.Bool("has_drawings"),
		HasDocuments: r.Bool("has_documents"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}

// =============================================================================
// WORKER
// =============================================================================

// Worker is a field worker. MyNumber is the national identification number
// and is only ever shown to admins by the front end.
type Worker struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	MyNumber         string    `json:"my_number"`
	BloodType        string    `json:"blood_type"`
	EmergencyContact string    `json:"emergency_contact"`
	EmergencyPhone   string    `json:"emergency_phone"`
	EmergencyAddress string    `json:"emergency_address"`
	Note             string    `json:"note"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (w Worker) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return generic.Invalid("worker", "name", "required")
	}
	return nil
}

func (w Worker) Record() generic.Record {
	return generic.Record{
		"name":              strings.TrimSpace(w.Name),
		"address":           w.Address,
		"phone":             w.Phone,
		"email":             w.Email,
		"my_number":         w.MyNumber,
		"blood_type":        w.BloodType,
		"emergency_contact": w.EmergencyContact,
		"emergency_phone":   w.EmergencyPhone,
		"emergency_address": w.EmergencyAddress,
		"note":              w.Note,
	}
}

func WorkerFromRecord(r generic.Record) Worker {
	return Worker{
		ID:               r.Int64("id"),
		Name:             r.String("name"),
		Address:          r.String("address"),
		Phone:            r.String("phone"),
		Email:            r.String("email"),
		MyNumber:         r.String("my_number"),
		BloodType:        r.String("blood_type"),
		EmergencyContact: r.String("emergency_contact"),
		EmergencyPhone:   r.String("emergency_phone"),
		EmergencyAddress: r.String("emergency_address"),
		Note:             r.String("note"),
		CreatedAt:        r.Time("created_at"),
		UpdatedAt:        r.Time("updated_at"),
	}
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is an entry of the service catalogue (cleaning, inspection, ...).
type Service struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (s Service) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return generic.Invalid("service", "name", "required")
	}
	return nil
}

func (s Service) Record() generic.Record {
	return generic.Record{
		"name":        strings.TrimSpace(s.Name),
		"description": s.Description,
	}
}

func ServiceFromRecord(r generic.Record) Service {
	return Service{
		ID:          r.Int64("id"),
		Name:        r.String("name"),
		Description: r.String("description"),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
}
