// Package formschema validates visitor answers against an event's dynamic registration form.
//
// Every field kind is a closed variant registered in a single table that maps the kind to
// its emptiness rule, its value check, and the input widget used to render it. Behaviour is
// never derived from the runtime type of an answer alone.
package formschema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ElazAzel/inkmax-sub002/internal/model"
	"github.com/go-playground/validator/v10"
)

// Kind tags a form field variant.
type Kind string

const (
	ShortText      Kind = "short_text"
	LongText       Kind = "long_text"
	Number         Kind = "number"
	Date           Kind = "date"
	URL            Kind = "url"
	Phone          Kind = "phone"
	Dropdown       Kind = "dropdown"
	SingleChoice   Kind = "single_choice"
	MultipleChoice Kind = "multiple_choice"
	Checkbox       Kind = "checkbox"
	Media          Kind = "media"
	File           Kind = "file"
)

// EmailFieldID is the system-reserved attendee email field. It is required for every event
// whether or not the schema lists it.
const EmailFieldID = "email"

const emailLabel = "Email"

// Field is one question on the registration form.
type Field struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Type        Kind     `json:"type"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
}

// Schema is the ordered list of form fields.
type Schema struct {
	Fields []Field `json:"fields"`
}

type kindSpec struct {
	input     string
	supported bool
	// emptyFalse makes boolean false count as an empty answer.
	emptyFalse bool
	check      func(f Field, v any) string
}

var kinds = map[Kind]kindSpec{
	ShortText:      {input: "text", supported: true, check: checkString},
	LongText:       {input: "textarea", supported: true, check: checkString},
	Number:         {input: "number", supported: true, check: checkNumber},
	Date:           {input: "date", supported: true, check: checkDate},
	URL:            {input: "url", supported: true, check: checkURL},
	Phone:          {input: "tel", supported: true, check: checkPhone},
	Dropdown:       {input: "select", supported: true, check: checkOption},
	SingleChoice:   {input: "radio", supported: true, check: checkOption},
	MultipleChoice: {input: "checkbox-group", supported: true, check: checkOptions},
	Checkbox:       {input: "checkbox", supported: true, emptyFalse: true, check: checkBool},
	Media:          {input: "unsupported"},
	File:           {input: "unsupported"},
}

// Known reports whether k is a registered field kind.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// Supported reports whether answers of kind k can be collected at all.
// Media and file fields are placeholders that never hold an answer.
func (k Kind) Supported() bool {
	return kinds[k].supported
}

// Input returns the widget used to render kind k.
func (k Kind) Input() string {
	return kinds[k].input
}

// Parse decodes a stored form schema. It accepts either {"fields": [...]} or a bare array.
// An empty document is an empty schema.
func Parse(raw json.RawMessage) (Schema, error) {
	var s Schema
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return s, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &s.Fields); err != nil {
			return Schema{}, fmt.Errorf("decode form schema: %w", err)
		}
	} else if err := json.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("decode form schema: %w", err)
	}
	if err := s.Check(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Check reports structural problems in the schema itself: unknown kinds, missing or
// duplicate ids, a field shadowing the reserved email id, choice fields without options.
func (s Schema) Check() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.ID == "" {
			return fmt.Errorf("%w: form field %d has no id", model.ErrValidation, i)
		}
		if f.ID == EmailFieldID {
			return fmt.Errorf("%w: form field id %q is reserved", model.ErrValidation, f.ID)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("%w: duplicate form field id %q", model.ErrValidation, f.ID)
		}
		seen[f.ID] = struct{}{}
		if !f.Type.Known() {
			return fmt.Errorf("%w: form field %q has unknown type %q", model.ErrValidation, f.ID, f.Type)
		}
		switch f.Type {
		case Dropdown, SingleChoice, MultipleChoice:
			if len(f.Options) == 0 {
				return fmt.Errorf("%w: form field %q needs options", model.ErrValidation, f.ID)
			}
		}
	}
	return nil
}

// Validate checks the attendee email and then every schema field in order, returning the
// first failure as a *model.ValidationError. It never collects more than one error.
func Validate(s Schema, email string, answers map[string]any) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if err := validateField(f, answers[f.ID]); err != nil {
			return err
		}
	}
	return nil
}

// emailRule is the same address rule request DTOs apply through their "email" tags.
var emailRule = validator.New()

// ValidateEmail checks the reserved attendee email field.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.NewValidationError(EmailFieldID, emailLabel, "is required")
	}
	if err := emailRule.Var(email, "email"); err != nil {
		return model.NewValidationError(EmailFieldID, emailLabel, "is not a valid email address")
	}
	return nil
}

func validateField(f Field, v any) error {
	spec, ok := kinds[f.Type]
	if !ok {
		return model.NewValidationError(f.ID, f.Label, fmt.Sprintf("unknown field type %q", f.Type))
	}
	if !spec.supported {
		if f.Required {
			return model.NewValidationError(f.ID, f.Label, "uploads are not supported")
		}
		return nil
	}
	if isEmpty(spec, v) {
		if f.Required {
			return model.NewValidationError(f.ID, f.Label, "is required")
		}
		return nil
	}
	if reason := spec.check(f, v); reason != "" {
		return model.NewValidationError(f.ID, f.Label, reason)
	}
	return nil
}

func isEmpty(spec kindSpec, v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case bool:
		return spec.emptyFalse && !val
	}
	return false
}

func checkString(_ Field, v any) string {
	if _, ok := v.(string); !ok {
		return "must be text"
	}
	return ""
}

func checkNumber(_ Field, v any) string {
	switch val := v.(type) {
	case float64, int, int64:
		return ""
	case json.Number:
		if _, err := val.Float64(); err == nil {
			return ""
		}
	case string:
		if _, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return ""
		}
	}
	return "must be a number"
}

func checkDate(_ Field, v any) string {
	s, ok := v.(string)
	if !ok {
		return "must be a date"
	}
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(s)); err != nil {
		return "must be a date (YYYY-MM-DD)"
	}
	return ""
}

// URL answers must carry an explicit web scheme.
var urlPrefixes = []string{"https://", "http://"}

func checkURL(_ Field, v any) string {
	s, ok := v.(string)
	if !ok {
		return "must be a link"
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range urlPrefixes {
		if strings.HasPrefix(s, p) && len(s) > len(p) {
			return ""
		}
	}
	return "must start with https:// or http://"
}

func checkPhone(_ Field, v any) string {
	s, ok := v.(string)
	if !ok {
		return "must be a phone number"
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "must be a phone number"
		}
	}
	if digits < 5 {
		return "must be a phone number"
	}
	return ""
}

func checkOption(f Field, v any) string {
	s, ok := v.(string)
	if !ok || !hasOption(f, s) {
		return "must be one of the listed options"
	}
	return ""
}

func checkOptions(f Field, v any) string {
	var picked []string
	switch val := v.(type) {
	case []string:
		picked = val
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return "must be a list of options"
			}
			picked = append(picked, s)
		}
	default:
		return "must be a list of options"
	}
	for _, s := range picked {
		if !hasOption(f, s) {
			return fmt.Sprintf("%q is not one of the listed options", s)
		}
	}
	return ""
}

func checkBool(_ Field, v any) string {
	if _, ok := v.(bool); !ok {
		return "must be checked or unchecked"
	}
	return ""
}

func hasOption(f Field, s string) bool {
	if len(f.Options) == 0 {
		return true
	}
	for _, o := range f.Options {
		if o == s {
			return true
		}
	}
	return false
}

// FieldView is a field annotated with its render widget.
type FieldView struct {
	Field
	Input     string `json:"input"`
	Supported bool   `json:"supported"`
}

// Describe returns the fields of s in order with their render hints, preceded by the
// reserved email field.
func Describe(s Schema) []FieldView {
	views := make([]FieldView, 0, len(s.Fields)+1)
	views = append(views, FieldView{
		Field:     Field{ID: EmailFieldID, Label: emailLabel, Type: ShortText, Required: true},
		Input:     "email",
		Supported: true,
	})
	for _, f := range s.Fields {
		views = append(views, FieldView{Field: f, Input: f.Type.Input(), Supported: f.Type.Supported()})
	}
	return views
}
