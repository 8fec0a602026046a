package catalog

import (
	"fmt"
	"slices"
)

// Kind identifies the editor control for a setting.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindRange
	KindSelect
	KindBoolean
	KindMultiSelect
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindRange:
		return "range"
	case KindSelect:
		return "select"
	case KindBoolean:
		return "checkbox"
	case KindMultiSelect:
		return "multiselect"
	default:
		return "unknown"
	}
}

// Spec is the kind-specific part of a setting field. The set of
// implementations is closed: TextSpec, NumberSpec, SelectSpec, BooleanSpec
// and MultiSelectSpec.
type Spec interface {
	Kind() Kind
	// DefaultValue returns a fresh copy of the default value.
	DefaultValue() any
	isSpec()
}

type TextSpec struct {
	Default string
}

func (TextSpec) Kind() Kind          { return KindText }
func (s TextSpec) DefaultValue() any { return s.Default }
func (TextSpec) isSpec()             {}

// NumberSpec covers both plain numeric inputs and sliders.
type NumberSpec struct {
	Default float64
	Min     float64
	Max     float64
	Step    float64
	HasMin  bool
	HasMax  bool
	Slider  bool
}

func (s NumberSpec) Kind() Kind {
	if s.Slider {
		return KindRange
	}
	return KindNumber
}
func (s NumberSpec) DefaultValue() any { return s.Default }
func (NumberSpec) isSpec()             {}

// Clamp limits v to the configured bounds.
func (s NumberSpec) Clamp(v float64) float64 {
	if s.HasMin && v < s.Min {
		v = s.Min
	}
	if s.HasMax && v > s.Max {
		v = s.Max
	}
	return v
}

type SelectSpec struct {
	Options []string
	Default string
}

func (SelectSpec) Kind() Kind          { return KindSelect }
func (s SelectSpec) DefaultValue() any { return s.Default }
func (SelectSpec) isSpec()             {}

type BooleanSpec struct {
	Default bool
}

func (BooleanSpec) Kind() Kind          { return KindBoolean }
func (s BooleanSpec) DefaultValue() any { return s.Default }
func (BooleanSpec) isSpec()             {}

type MultiSelectSpec struct {
	Options []string
	Default []string
}

func (MultiSelectSpec) Kind() Kind          { return KindMultiSelect }
func (s MultiSelectSpec) DefaultValue() any { return slices.Clone(s.Default) }
func (MultiSelectSpec) isSpec()             {}

// Field is one configurable setting of a module definition.
type Field struct {
	Key      string
	Label    string
	Required bool
	Spec     Spec
}

// FieldDoc is the serialized form of a Field, shared by the YAML catalog
// and the JSON workflow document.
type FieldDoc struct {
	Key      string   `yaml:"key" json:"key"`
	Type     string   `yaml:"type" json:"type"`
	Label    string   `yaml:"label,omitempty" json:"label,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitzero"`
	Default  any      `yaml:"default,omitempty" json:"default,omitempty"`
	Min      *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Step     *float64 `yaml:"step,omitempty" json:"step,omitempty"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Doc converts f to its serialized form.
func (f Field) Doc() FieldDoc {
	doc := FieldDoc{
		Key:      f.Key,
		Type:     f.Spec.Kind().String(),
		Label:    f.Label,
		Required: f.Required,
		Default:  f.Spec.DefaultValue(),
	}
	switch s := f.Spec.(type) {
	case TextSpec, BooleanSpec:
	case NumberSpec:
		if s.HasMin {
			doc.Min = &s.Min
		}
		if s.HasMax {
			doc.Max = &s.Max
		}
		if s.Step != 0 {
			doc.Step = &s.Step
		}
	case SelectSpec:
		doc.Options = slices.Clone(s.Options)
	case MultiSelectSpec:
		doc.Options = slices.Clone(s.Options)
	}
	return doc
}

// ParseField validates doc and builds the Field it describes.
func ParseField(doc FieldDoc) (Field, error) {
	if doc.Key == "" {
		return Field{}, fmt.Errorf("setting without key")
	}
	f := Field{Key: doc.Key, Label: doc.Label, Required: doc.Required}
	if f.Label == "" {
		f.Label = doc.Key
	}

	switch doc.Type {
	case "text", "":
		s := TextSpec{}
		if doc.Default != nil {
			v, ok := doc.Default.(string)
			if !ok {
				return Field{}, fmt.Errorf("setting %q: text default must be a string", doc.Key)
			}
			s.Default = v
		}
		f.Spec = s
	case "number", "range":
		s := NumberSpec{Slider: doc.Type == "range"}
		if doc.Default != nil {
			v, ok := ToFloat(doc.Default)
			if !ok {
				return Field{}, fmt.Errorf("setting %q: numeric default expected", doc.Key)
			}
			s.Default = v
		}
		if doc.Min != nil {
			s.Min, s.HasMin = *doc.Min, true
		}
		if doc.Max != nil {
			s.Max, s.HasMax = *doc.Max, true
		}
		if doc.Step != nil {
			s.Step = *doc.Step
		}
		if s.HasMin && s.HasMax && s.Min > s.Max {
			return Field{}, fmt.Errorf("setting %q: min %v above max %v", doc.Key, s.Min, s.Max)
		}
		f.Spec = s
	case "select":
		s := SelectSpec{Options: slices.Clone(doc.Options)}
		if len(s.Options) == 0 {
			return Field{}, fmt.Errorf("setting %q: select without options", doc.Key)
		}
		s.Default = s.Options[0]
		if doc.Default != nil {
			v, ok := doc.Default.(string)
			if !ok || !slices.Contains(s.Options, v) {
				return Field{}, fmt.Errorf("setting %q: default %v is not an option", doc.Key, doc.Default)
			}
			s.Default = v
		}
		f.Spec = s
	case "checkbox", "boolean":
		s := BooleanSpec{}
		if doc.Default != nil {
			v, ok := doc.Default.(bool)
			if !ok {
				return Field{}, fmt.Errorf("setting %q: boolean default expected", doc.Key)
			}
			s.Default = v
		}
		f.Spec = s
	case "multiselect":
		s := MultiSelectSpec{Options: slices.Clone(doc.Options)}
		if len(s.Options) == 0 {
			return Field{}, fmt.Errorf("setting %q: multiselect without options", doc.Key)
		}
		if doc.Default != nil {
			v, ok := ToStrings(doc.Default)
			if !ok {
				return Field{}, fmt.Errorf("setting %q: multiselect default must be a list", doc.Key)
			}
			for _, opt := range v {
				if !slices.Contains(s.Options, opt) {
					return Field{}, fmt.Errorf("setting %q: default %q is not an option", doc.Key, opt)
				}
			}
			s.Default = v
		}
		f.Spec = s
	default:
		return Field{}, fmt.Errorf("setting %q: unknown type %q", doc.Key, doc.Type)
	}
	return f, nil
}

// ToFloat accepts the numeric types produced by the YAML and JSON decoders.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ToStrings accepts []string or a decoded []any of strings.
func ToStrings(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return slices.Clone(list), true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
