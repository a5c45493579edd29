// Package form validates raw transaction input before it reaches the service.
//
// Input arrives as strings, the way an HTML form or a loosely typed JSON body
// supplies it. Validation is synchronous and reports one message per field.
package form

import (
	"strings"

	"finviz/internal/core"

	"github.com/shopspring/decimal"
)

// User facing messages.
const (
	MsgAmountRequired      = "Amount is required"
	MsgAmountPositive      = "Amount must be a positive number"
	MsgDescriptionRequired = "Description is required"
	MsgDateInvalid         = "Please enter a valid date"
)

// Input is a full create submission.
type Input struct {
	Amount      string
	Description string
	Date        string
}

// PatchInput is an update submission; nil fields were not supplied.
type PatchInput struct {
	Amount      *string
	Description *string
	Date        *string
}

// Errors maps field names to messages. An empty Errors means valid.
type Errors map[string]string

// OK reports whether no field failed.
func (e Errors) OK() bool {
	return len(e) == 0
}

// AsValidationError converts e to the domain error type, or nil when valid.
func (e Errors) AsValidationError() error {
	if e.OK() {
		return nil
	}
	v := &core.ValidationError{}
	for k, msg := range e {
		v.Add(k, msg)
	}
	return v
}

// Validate checks a create submission and returns the coerced transaction.
func Validate(in Input) (core.NewTransaction, Errors) {
	errs := Errors{}
	var out core.NewTransaction

	if amount, msg := amountField(in.Amount); msg != "" {
		errs[core.FieldAmount] = msg
	} else {
		out.Amount = amount
	}

	if desc, msg := descriptionField(in.Description); msg != "" {
		errs[core.FieldDescription] = msg
	} else {
		out.Description = desc
	}

	if date, msg := dateField(in.Date); msg != "" {
		errs[core.FieldDate] = msg
	} else {
		out.Date = date
	}

	return out, errs
}

// ValidatePatch checks only the supplied fields of an update submission.
func ValidatePatch(in PatchInput) (core.Patch, Errors) {
	errs := Errors{}
	var p core.Patch

	if in.Amount != nil {
		if amount, msg := amountField(*in.Amount); msg != "" {
			errs[core.FieldAmount] = msg
		} else {
			p.Amount = &amount
		}
	}
	if in.Description != nil {
		if desc, msg := descriptionField(*in.Description); msg != "" {
			errs[core.FieldDescription] = msg
		} else {
			p.Description = &desc
		}
	}
	if in.Date != nil {
		if date, msg := dateField(*in.Date); msg != "" {
			errs[core.FieldDate] = msg
		} else {
			p.Date = &date
		}
	}

	return p, errs
}

func amountField(raw string) (decimal.Decimal, string) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, MsgAmountRequired
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, MsgAmountPositive
	}
	return v, ""
}

func descriptionField(raw string) (string, string) {
	desc := strings.TrimSpace(raw)
	if desc == "" {
		return "", MsgDescriptionRequired
	}
	return desc, ""
}

func dateField(raw string) (core.Date, string) {
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, MsgDateInvalid
	}
	return d, ""
}
