// Package property turns a module instance's settings schema into an
// editable form and parses submitted form values back into settings.
package property

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"attackbuilder/internal/catalog"
	"attackbuilder/internal/graph"
)

// ErrInvalidValue wraps every rejected form value.
var ErrInvalidValue = errors.New("invalid value")

// Field is one row of the form. Which of Text, Checked and Chosen is
// meaningful depends on Spec.
type Field struct {
	Key      string
	Label    string
	Required bool
	Spec     catalog.Spec
	Text     string
	Checked  bool
	Chosen   []string
}

type Form struct {
	InstanceID string
	Title      string
	Fields     []Field
}

// Entry is the submitted state of one field.
type Entry struct {
	Text    string
	Checked bool
	Chosen  []string
}

type Values map[string]Entry

// Build describes the form for in, pre-filled with its current settings.
func Build(in graph.Instance) Form {
	form := Form{InstanceID: in.ID}
	if in.Def == nil {
		return form
	}
	form.Title = in.Def.Name
	for _, f := range in.Def.Settings {
		field := Field{Key: f.Key, Label: f.Label, Required: f.Required, Spec: f.Spec}
		cur, ok := in.Settings[f.Key]
		if !ok {
			cur = f.Spec.DefaultValue()
		}
		switch spec := f.Spec.(type) {
		case catalog.TextSpec:
			field.Text, _ = cur.(string)
		case catalog.NumberSpec:
			n, ok := catalog.ToFloat(cur)
			if !ok {
				n = spec.Default
			}
			field.Text = FormatNumber(n)
		case catalog.SelectSpec:
			field.Text, _ = cur.(string)
		case catalog.BooleanSpec:
			field.Checked, _ = cur.(bool)
		case catalog.MultiSelectSpec:
			field.Chosen, _ = catalog.ToStrings(cur)
		}
		form.Fields = append(form.Fields, field)
	}
	return form
}

// Values returns the form's current entries, ready to pass to Parse.
func (f Form) Values() Values {
	out := make(Values, len(f.Fields))
	for _, field := range f.Fields {
		out[field.Key] = Entry{Text: field.Text, Checked: field.Checked, Chosen: slices.Clone(field.Chosen)}
	}
	return out
}

// Cycle moves a select field to the next (or previous) option. Other kinds
// are left alone.
func (f *Field) Cycle(delta int) {
	spec, ok := f.Spec.(catalog.SelectSpec)
	if !ok || len(spec.Options) == 0 {
		return
	}
	i := slices.Index(spec.Options, f.Text)
	n := len(spec.Options)
	i = ((i+delta)%n + n) % n
	f.Text = spec.Options[i]
}

// Step nudges a number field by delta steps of its schema, within its
// bounds. Text that does not parse starts from the default.
func (f *Field) Step(delta int) {
	spec, ok := f.Spec.(catalog.NumberSpec)
	if !ok {
		return
	}
	step := spec.Step
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		step = 1
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(f.Text), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		n = spec.Default
	}
	n = spec.Clamp(n + float64(delta)*step)
	// round away float noise at the step's precision
	decimals := 0
	if s := FormatNumber(step); strings.Contains(s, ".") {
		decimals = len(s) - strings.Index(s, ".") - 1
	}
	n, _ = strconv.ParseFloat(strconv.FormatFloat(n, 'f', decimals, 64), 64)
	f.Text = FormatNumber(n)
}

// Toggle flips a checkbox, or the given option of a multiselect.
func (f *Field) Toggle(option string) {
	switch spec := f.Spec.(type) {
	case catalog.BooleanSpec:
		f.Checked = !f.Checked
	case catalog.MultiSelectSpec:
		if !slices.Contains(spec.Options, option) {
			return
		}
		if i := slices.Index(f.Chosen, option); i >= 0 {
			f.Chosen = slices.Delete(f.Chosen, i, i+1)
			return
		}
		f.Chosen = append(f.Chosen, option)
		// keep schema order
		slices.SortFunc(f.Chosen, func(a, b string) int {
			return slices.Index(spec.Options, a) - slices.Index(spec.Options, b)
		})
	}
}

// Parse validates values against def and returns the complete new settings
// map. Keys missing from values keep their entry in current. Either every
// field parses or an error joining every failure is returned.
func Parse(def *catalog.Definition, current map[string]any, values Values) (map[string]any, error) {
	out := graph.CloneSettings(current)
	if out == nil {
		out = make(map[string]any, len(def.Settings))
	}
	var errs []error
	for _, f := range def.Settings {
		entry, ok := values[f.Key]
		if !ok {
			if _, has := out[f.Key]; !has {
				out[f.Key] = f.Spec.DefaultValue()
			}
			continue
		}
		v, err := parseEntry(f, entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Label, err))
			continue
		}
		out[f.Key] = v
	}
	for key := range values {
		if _, ok := def.Field(key); !ok {
			errs = append(errs, fmt.Errorf("%w: unknown setting %q", ErrInvalidValue, key))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func parseEntry(f catalog.Field, e Entry) (any, error) {
	switch spec := f.Spec.(type) {
	case catalog.TextSpec:
		if f.Required && strings.TrimSpace(e.Text) == "" {
			return nil, fmt.Errorf("%w: required", ErrInvalidValue)
		}
		return e.Text, nil
	case catalog.NumberSpec:
		return parseNumber(spec, e.Text)
	case catalog.SelectSpec:
		if !slices.Contains(spec.Options, e.Text) {
			return nil, fmt.Errorf("%w: %q is not one of %s", ErrInvalidValue, e.Text, strings.Join(spec.Options, ", "))
		}
		return e.Text, nil
	case catalog.BooleanSpec:
		return e.Checked, nil
	case catalog.MultiSelectSpec:
		chosen := make([]string, 0, len(e.Chosen))
		for _, c := range e.Chosen {
			if !slices.Contains(spec.Options, c) {
				return nil, fmt.Errorf("%w: %q is not one of %s", ErrInvalidValue, c, strings.Join(spec.Options, ", "))
			}
			chosen = append(chosen, c)
		}
		if f.Required && len(chosen) == 0 {
			return nil, fmt.Errorf("%w: required", ErrInvalidValue)
		}
		return chosen, nil
	default:
		return nil, fmt.Errorf("%w: unsupported setting type %T", ErrInvalidValue, f.Spec)
	}
}

func parseNumber(spec catalog.NumberSpec, text string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, text)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", ErrInvalidValue, text)
	}
	return spec.Clamp(n), nil
}

// FormatNumber renders n the way the form displays it.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
