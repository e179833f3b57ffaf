// internal/app/system/inputval/inputval.go
//
// Package inputval validates request input. Simple predicates cover the
// common single-field checks; Validate handles whole structs using
// `validate` and `label` tags so handlers can produce friendly messages
// without repeating boilerplate.
package inputval

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IsValidEmail reports whether s is a plausible bare email address.
// Display-name forms ("Name <a@b>") are rejected; the stored value must
// be the address alone.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	// ParseAddress accepts "Name <a@b>"; require the bare address form.
	return addr.Address == s
}

// IsValidHTTPURL reports whether s parses as an absolute http(s) URL.
func IsValidHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidObjectID reports whether s is a 24-character hex ObjectID.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	return err == nil
}

// IsValidIMDbID reports whether s looks like an IMDb title id.
// The upstream catalog is the authority on existence; here we only
// reject values too short to be an id.
func IsValidIMDbID(s string) bool {
	return len(strings.TrimSpace(s)) >= 2
}

// FieldError describes a single failed check.
type FieldError struct {
	Field   string
	Message string
}

// Result collects the errors from a Validate call.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any check failed.
func (r *Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first error message, or "" when there are none.
func (r *Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// All joins every error message with "; ".
func (r *Result) All() string {
	if len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

func (r *Result) add(field, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

// Validate runs the `validate` tag rules against the string fields of a
// struct. Supported rules: required, email, httpurl, objectid, imdbid,
// min=N, max=N. The `label` tag supplies the human-readable field name
// used in messages.
func Validate(input any) *Result {
	res := &Result{}
	forEachTaggedField(input, func(label, value string, rules []string) {
		value = strings.TrimSpace(value)
		for _, rule := range rules {
			switch {
			case rule == "required":
				if value == "" {
					res.add(label, fmt.Sprintf("%s is required.", label))
					return
				}
			case rule == "email":
				if value != "" && !IsValidEmail(value) {
					res.add(label, "A valid email address is required.")
					return
				}
			case rule == "httpurl":
				if value != "" && !IsValidHTTPURL(value) {
					res.add(label, fmt.Sprintf("%s must be a valid http(s) URL.", label))
					return
				}
			case rule == "objectid":
				if value != "" && !IsValidObjectID(value) {
					res.add(label, fmt.Sprintf("%s must be a valid id.", label))
					return
				}
			case rule == "imdbid":
				if value != "" && !IsValidIMDbID(value) {
					res.add(label, fmt.Sprintf("%s must be a valid IMDb id.", label))
					return
				}
			case strings.HasPrefix(rule, "min="):
				if n, err := strconv.Atoi(rule[len("min="):]); err == nil && value != "" && len([]rune(value)) < n {
					res.add(label, fmt.Sprintf("%s must be at least %d characters.", label, n))
					return
				}
			case strings.HasPrefix(rule, "max="):
				if n, err := strconv.Atoi(rule[len("max="):]); err == nil && len([]rune(value)) > n {
					res.add(label, fmt.Sprintf("%s must be at most %d characters.", label, n))
					return
				}
			}
		}
	})
	return res
}
