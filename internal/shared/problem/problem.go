// Package problem renders engine errors as RFC 7807 style Problem Details so
// operator tooling can report failures in a machine readable form.
package problem

import (
	"fmt"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

// Exit codes used by the command line tools.
const (
	ExitFailure   = 1
	ExitRejected  = 2
	ExitTransient = 75
)

// Detail is a Problem Details document describing one failure.
// See: https://www.rfc-editor.org/rfc/rfc7807
type Detail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Kind is the engine error category.
	Kind string `json:"kind"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Instance identifies the record the failure is about.
	Instance string `json:"instance,omitempty"`
	// Retryable is set when repeating the same request may succeed.
	Retryable bool `json:"retryable"`

	exitCode int
}

// Error implements the error interface.
func (d Detail) Error() string {
	if d.Detail != "" {
		return fmt.Sprintf("%s: %s", d.Title, d.Detail)
	}
	return d.Title
}

// WithInstance returns a copy with the given instance reference.
func (d Detail) WithInstance(instance string) Detail {
	d.Instance = instance
	return d
}

var titles = map[errkind.Kind]string{
	errkind.InsufficientStock:  "Insufficient Stock",
	errkind.InvalidQuantity:    "Invalid Quantity",
	errkind.IllegalTransition:  "Illegal Status Transition",
	errkind.RefundNotAllowed:   "Refund Not Allowed",
	errkind.InvalidMoneyValue:  "Invalid Money Value",
	errkind.IdGenerationFailed: "Identifier Generation Failed",
	errkind.DuplicateReview:    "Duplicate Review",
	errkind.NotFound:           "Resource Not Found",
	errkind.Conflict:           "Conflict",
	errkind.InvalidInput:       "Validation Error",
	errkind.Internal:           "Internal Error",
}

// FromError classifies err. A nil error yields the zero Detail.
func FromError(err error) Detail {
	if err == nil {
		return Detail{}
	}
	kind := errkind.Of(err)
	title, ok := titles[kind]
	if !ok {
		title = "Unknown Error"
	}
	d := Detail{
		Type:      "/problems/" + string(kind),
		Title:     title,
		Kind:      string(kind),
		Detail:    err.Error(),
		Retryable: errkind.Retryable(err),
		exitCode:  ExitFailure,
	}
	switch {
	case d.Retryable:
		d.exitCode = ExitTransient
	case errkind.ClientCorrectable(err):
		d.exitCode = ExitRejected
	}
	return d
}

// ExitCode maps the problem to a process exit status: transient failures exit
// with 75 (EX_TEMPFAIL), rejected requests with 2 and anything else with 1.
func (d Detail) ExitCode() int {
	return d.exitCode
}
