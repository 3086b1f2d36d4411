package model

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed labels.yaml
var defaultLabelsYAML []byte

// Labels maps the small integer codes of the raw dataset to display labels.
type Labels struct {
	ViolenceType map[int]string `yaml:"type_of_violence"`
	ActiveYear   map[int]string `yaml:"active_year"`
	WherePrec    map[int]string `yaml:"where_prec"`
	DatePrec     map[int]string `yaml:"date_prec"`
}

// DefaultLabels returns the built-in UCDP label tables.
func DefaultLabels() Labels {
	var l Labels
	if err := yaml.Unmarshal(defaultLabelsYAML, &l); err != nil {
		panic("model: embedded labels.yaml is invalid: " + err.Error())
	}
	return l
}

// LoadLabels reads label overrides from a YAML file and merges them over the
// defaults. An empty path returns the defaults.
func LoadLabels(path string) (Labels, error) {
	labels := DefaultLabels()
	if path == "" {
		return labels, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Labels{}, eris.Wrapf(err, "labels: read %s", path)
	}
	var override Labels
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Labels{}, eris.Wrapf(err, "labels: parse %s", path)
	}

	merge(labels.ViolenceType, override.ViolenceType)
	merge(labels.ActiveYear, override.ActiveYear)
	merge(labels.WherePrec, override.WherePrec)
	merge(labels.DatePrec, override.DatePrec)

	if err := labels.Validate(); err != nil {
		return Labels{}, err
	}
	return labels, nil
}

func merge(dst, src map[int]string) {
	for k, v := range src {
		dst[k] = v
	}
}

// Validate checks that the violence and activity tables only produce labels
// the rest of the system understands.
func (l Labels) Validate() error {
	for code, label := range l.ViolenceType {
		if ViolenceType(label).Ordinal() == len(ViolenceTypes) {
			return eris.Errorf("labels: type_of_violence %d maps to unknown label %q", code, label)
		}
	}
	for code, label := range l.ActiveYear {
		if a := ActiveYear(label); a != ActiveOverThreshold && a != ActiveUnderThreshold {
			return eris.Errorf("labels: active_year %d maps to unknown label %q", code, label)
		}
	}
	return nil
}

// Violence maps a type_of_violence code.
func (l Labels) Violence(code int) (ViolenceType, error) {
	label, ok := l.ViolenceType[code]
	if !ok {
		return "", eris.Errorf("unknown type_of_violence code %d", code)
	}
	return ViolenceType(label), nil
}

// Active maps an active_year code.
func (l Labels) Active(code int) (ActiveYear, error) {
	label, ok := l.ActiveYear[code]
	if !ok {
		return "", eris.Errorf("unknown active_year code %d", code)
	}
	return ActiveYear(label), nil
}

// LocationPrecision maps a where_prec code.
func (l Labels) LocationPrecision(code int) (Precision, error) {
	label, ok := l.WherePrec[code]
	if !ok {
		return Precision{}, eris.Errorf("unknown where_prec code %d", code)
	}
	return Precision{Code: code, Label: label}, nil
}

// DatePrecision maps a date_prec code.
func (l Labels) DatePrecision(code int) (Precision, error) {
	label, ok := l.DatePrec[code]
	if !ok {
		return Precision{}, eris.Errorf("unknown date_prec code %d", code)
	}
	return Precision{Code: code, Label: label}, nil
}

// ViolenceCode returns the smallest type_of_violence code labelled v.
func (l Labels) ViolenceCode(v ViolenceType) (int, error) {
	if code, ok := codeOf(l.ViolenceType, string(v)); ok {
		return code, nil
	}
	return 0, eris.Errorf("no type_of_violence code for %q", v)
}

// ActiveCode returns the smallest active_year code labelled a.
func (l Labels) ActiveCode(a ActiveYear) (int, error) {
	if code, ok := codeOf(l.ActiveYear, string(a)); ok {
		return code, nil
	}
	return 0, eris.Errorf("no active_year code for %q", a)
}

func codeOf(table map[int]string, label string) (int, bool) {
	best, found := 0, false
	for code, l := range table {
		if l == label && (!found || code < best) {
			best, found = code, true
		}
	}
	return best, found
}
