// Package validation implements the client validation rules, most notably
// the type-conditional invariant binding a client's type to its birthday
// and company identifier. Validation is a pure function of the candidate
// image; it performs no I/O.
package validation

import (
	"regexp"
	"strings"
	"time"

	"github.com/gartstein/crm/internal/crm/models"
)

var phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)

// emailPattern is intentionally loose: one '@', non-empty local part,
// and a dotted domain.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldError describes a single violated rule on a named field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidateClient checks the full client image against the attribute rules
// and the type-conditional invariant. It returns one FieldError per
// violated rule; an empty result means the image is valid. A client with
// no type is trivially valid for the type-conditional rules (the create
// path always supplies a type).
func ValidateClient(client *models.Client) []FieldError {
	if client == nil {
		return nil
	}

	var errs []FieldError

	if strings.TrimSpace(client.Name) == "" {
		errs = append(errs, FieldError{Field: "name", Reason: "must not be blank"})
	}
	if client.Phone != "" && !phonePattern.MatchString(client.Phone) {
		errs = append(errs, FieldError{
			Field:  "phone",
			Reason: "must be 7 to 15 digits, optionally starting with '+'",
		})
	}
	if client.Email != "" && !emailPattern.MatchString(client.Email) {
		errs = append(errs, FieldError{Field: "email", Reason: "must be a valid email address"})
	}

	switch client.Type {
	case models.Company:
		if client.Birthday != nil {
			errs = append(errs, FieldError{Field: "birthday", Reason: "must be absent for a company"})
		}
		if strings.TrimSpace(client.CompanyIdentifier) == "" {
			errs = append(errs, FieldError{Field: "companyIdentifier", Reason: "required for a company"})
		}
	case models.Person:
		if client.Birthday == nil {
			errs = append(errs, FieldError{Field: "birthday", Reason: "required for a person"})
		} else if !client.Birthday.Before(time.Now()) {
			errs = append(errs, FieldError{Field: "birthday", Reason: "must be in the past"})
		}
		if strings.TrimSpace(client.CompanyIdentifier) != "" {
			errs = append(errs, FieldError{Field: "companyIdentifier", Reason: "must be absent for a person"})
		}
	}

	return errs
}
