package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Kind classifies a single cell.
type Kind uint8

const (
	Missing Kind = iota
	Number
	Text
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Text:
		return "text"
	default:
		return "missing"
	}
}

// Value is one typed cell. Raw keeps the trimmed source text.
type Value struct {
	Kind Kind
	Raw  string
	Num  float64
}

// naTokens are cell texts read as missing, following the pandas default NA set.
var naTokens = map[string]struct{}{
	"NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#NA": {}, "<NA>": {},
}

// ParseValue classifies a raw cell using the numeric conventions in opt.
func ParseValue(raw string, opt Options) Value {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\u00A0", " "))
	if s == "" {
		return Value{Kind: Missing}
	}
	if _, ok := naTokens[s]; ok {
		return Value{Kind: Missing, Raw: s}
	}
	if f, ok := parseNumeric(s, opt); ok {
		if f == 0 {
			f = 0 // fold -0
		}
		return Value{Kind: Number, Raw: s, Num: f}
	}
	return Value{Kind: Text, Raw: s}
}

// NumberValue builds a numeric cell.
func NumberValue(f float64) Value {
	if f == 0 {
		f = 0
	}
	return Value{Kind: Number, Raw: strconv.FormatFloat(f, 'f', -1, 64), Num: f}
}

// TextValue builds a text cell; an empty string yields a missing cell.
func TextValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{Kind: Missing}
	}
	return Value{Kind: Text, Raw: s}
}

func (v Value) IsMissing() bool { return v.Kind == Missing }

// String returns the display label: numbers in shortest decimal form, text as read.
func (v Value) String() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Text:
		return v.Raw
	default:
		return ""
	}
}

// Key identifies the value under dataset equality: two values are equal when
// their labels match, so 10 and 10.0 collapse and a text cell reading "10"
// equals the number 10. Missing values have an empty key.
func (v Value) Key() string {
	if v.Kind == Missing {
		return ""
	}
	return v.String()
}

// Compare orders values: missing, then numbers ascending, then text ascending.
func Compare(a, b Value) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case Number:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	case Text:
		return strings.Compare(a.Raw, b.Raw)
	}
	return 0
}

// parseNumeric accepts plain and locale-formatted decimals. Thousands separators
// are only removed when they group digits in threes, so "1,2" stays text under
// a '.' decimal separator.
func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0 && !groupedThousands(raw, ','):
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec && strings.ContainsRune(raw, sep) {
				thou = sep
				break
			}
		}
	}
	if thou != 0 && thou != dec && strings.ContainsRune(raw, thou) {
		if !groupedThousands(raw, thou) {
			return 0, false
		}
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		if strings.ContainsRune(raw, '.') {
			return 0, false
		}
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// groupedThousands reports whether every sep in the integer part of s is
// followed by exactly three digits.
func groupedThousands(s string, sep rune) bool {
	intPart := s
	for _, d := range []string{".", ","} {
		if d == string(sep) {
			continue
		}
		if i := strings.Index(intPart, d); i >= 0 {
			intPart = intPart[:i]
		}
	}
	intPart = strings.TrimLeft(intPart, "+-")
	parts := strings.Split(intPart, string(sep))
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts {
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}
