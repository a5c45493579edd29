package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar date without time of day, always at UTC midnight.
	Date struct {
		time.Time
	}

	// Transaction is a persisted monetary record. ID is assigned by the store.
	Transaction struct {
		ID          string
		Amount      decimal.Decimal
		Description string
		Date        Date
	}

	// NewTransaction carries the fields of a transaction not yet stored.
	NewTransaction struct {
		Amount      decimal.Decimal
		Description string
		Date        Date
	}

	// Patch is a partial update; nil fields are left unchanged.
	Patch struct {
		Amount      *decimal.Decimal
		Description *string
		Date        *Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ValidateAmount rejects zero, negative and out of range amounts.
func ValidateAmount(a decimal.Decimal) error {
	if !a.IsPositive() || !finite(a) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateDescription checks a description that has already been trimmed.
func ValidateDescription(desc string) error {
	if strings.TrimSpace(desc) == "" {
		return ErrEmptyDescription
	}
	return nil
}

// Validate checks every field and reports all failures at once.
func (n NewTransaction) Validate() error {
	verr := &ValidationError{}
	if err := ValidateAmount(n.Amount); err != nil {
		verr.Add(FieldAmount, err.Error())
	}
	if err := ValidateDescription(n.Description); err != nil {
		verr.Add(FieldDescription, err.Error())
	}
	if err := n.Date.Validate(); err != nil {
		verr.Add(FieldDate, err.Error())
	}
	return verr.OrNil()
}

// Validate checks only the fields the patch supplies.
func (p Patch) Validate() error {
	verr := &ValidationError{}
	if p.Amount != nil {
		if err := ValidateAmount(*p.Amount); err != nil {
			verr.Add(FieldAmount, err.Error())
		}
	}
	if p.Description != nil {
		if err := ValidateDescription(*p.Description); err != nil {
			verr.Add(FieldDescription, err.Error())
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			verr.Add(FieldDate, err.Error())
		}
	}
	return verr.OrNil()
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Amount == nil && p.Description == nil && p.Date == nil
}

// Apply returns t with the supplied fields overridden. The ID never changes.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// Build turns a NewTransaction into a Transaction with the given id.
func (n NewTransaction) Build(id string) Transaction {
	return Transaction{
		ID:          id,
		Amount:      n.Amount,
		Description: n.Description,
		Date:        n.Date,
	}
}

// UpdateOutcome tags the result of an update.
type UpdateOutcome int

const (
	Updated UpdateOutcome = iota
	NotFound
)

func (o UpdateOutcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// UpdateResult is returned by update operations. Transaction is only set
// when Outcome is Updated.
type UpdateResult struct {
	Outcome     UpdateOutcome
	Transaction Transaction
}

// Found reports whether the update hit an existing record.
func (r UpdateResult) Found() bool {
	return r.Outcome == Updated
}

// UpdatedResult wraps t as a successful update.
func UpdatedResult(t Transaction) UpdateResult {
	return UpdateResult{Outcome: Updated, Transaction: t}
}

// NotFoundResult is the update result for a missing id.
func NotFoundResult() UpdateResult {
	return UpdateResult{Outcome: NotFound}
}
