package validation

import (
	"fmt"
	"net/mail"
	"net/netip"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ── Types ────────────────────────────────────────────────────────────────────

// Errors holds validation errors, mirroring Laravel's MessageBag.
// JSON output: {"errors": {"field": ["msg1", "msg2"]}}
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

func (e *Errors) add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields returns the names of the fields that failed, sorted.
func (e *Errors) Fields() []string {
	fields := make([]string, 0, len(e.Bag))
	for f := range e.Bag {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// ── Validator ────────────────────────────────────────────────────────────────

// Rules is a map of field → pipe-separated rule string.
// e.g. Rules{"email": "required|email", "age": "required|numeric|min:18"}
type Rules map[string]string

// Validator validates a flat map of input values. Rules run once, on the
// first call to Fails, Passes or Errors.
type Validator struct {
	data   map[string]string
	rules  Rules
	errors *Errors
	ran    bool
}

// Make creates a new Validator, mirroring Validator::make($data, $rules).
func Make(data map[string]string, rules Rules) *Validator {
	return &Validator{
		data:   data,
		rules:  rules,
		errors: &Errors{},
	}
}

// Fails runs validation and returns true if any rule fails.
func (v *Validator) Fails() bool {
	v.validate()
	return v.errors.Has()
}

// Passes runs validation and returns true if all rules pass.
func (v *Validator) Passes() bool { return !v.Fails() }

// Errors returns the validation error bag.
func (v *Validator) Errors() *Errors {
	v.validate()
	return v.errors
}

// Valid returns the data of the fields that passed every rule. Fields
// without rules are kept.
func (v *Validator) Valid() map[string]string {
	v.validate()
	out := make(map[string]string, len(v.data))
	for k, val := range v.data {
		if _, failed := v.errors.Bag[k]; !failed {
			out[k] = val
		}
	}
	return out
}

// ── Core validation loop ─────────────────────────────────────────────────────

// skip ends a field's rules without an error.
const skip = "\x00skip"

// check is one rule applied to one field.
type check struct {
	v            *Validator
	field, value string
	param        string
}

// ruleFunc returns "" when the value passes, skip to stop checking the field
// silently, or the error message.
type ruleFunc func(c check) string

func (v *Validator) validate() {
	if v.ran {
		return
	}
	v.ran = true

	for field, ruleStr := range v.rules {
		for _, rule := range strings.Split(ruleStr, "|") {
			rule = strings.TrimSpace(rule)
			if rule == "" {
				continue
			}
			// min:3 → name=min, param=3
			name, param, _ := strings.Cut(rule, ":")
			fn, ok := rules[name]
			if !ok {
				continue
			}
			msg := fn(check{v: v, field: field, value: v.data[field], param: param})
			if msg == skip {
				break
			}
			if msg != "" {
				v.errors.add(field, msg)
				break // stop on first failure, like Laravel's bail
			}
		}
	}
}

var (
	urlRe       = regexp.MustCompile(`^https?://`)
	alphaRe     = regexp.MustCompile(`^[a-zA-Z]+$`)
	alphaNumRe  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	alphaDashRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

var rules map[string]ruleFunc

func init() {
	rules = map[string]ruleFunc{
		"required": failsIf(func(c check) bool { return strings.TrimSpace(c.value) == "" }, "The %s field is required."),
		// form values are always strings
		"string":    func(check) string { return "" },
		"nullable":  skipEmpty,
		"sometimes": skipEmpty,

		"numeric": failsIf(func(c check) bool {
			_, err := strconv.ParseFloat(c.value, 64)
			return err != nil
		}, "The %s must be a number."),
		"integer": failsIf(func(c check) bool {
			_, err := strconv.Atoi(c.value)
			return err != nil
		}, "The %s must be an integer."),
		"boolean": failsIf(func(c check) bool {
			switch strings.ToLower(c.value) {
			case "true", "false", "1", "0", "yes", "no":
				return false
			}
			return true
		}, "The %s field must be true or false."),
		"email": failsIf(func(c check) bool {
			_, err := mail.ParseAddress(c.value)
			return err != nil
		}, "The %s must be a valid email address."),
		"url": failsIf(func(c check) bool { return !urlRe.MatchString(c.value) }, "The %s must be a valid URL."),
		"ip": failsIf(func(c check) bool {
			_, err := netip.ParseAddr(c.value)
			return err != nil
		}, "The %s must be a valid IP address."),
		"date": failsIf(func(c check) bool {
			_, ok := ParseDate(c.value)
			return !ok
		}, "The %s is not a valid date."),

		"min":  length(func(l, n int) bool { return l >= n }, "The %s must be at least %d characters."),
		"max":  length(func(l, n int) bool { return l <= n }, "The %s may not be greater than %d characters."),
		"size": length(func(l, n int) bool { return l == n }, "The %s must be %d characters."),
		"between": func(c check) string {
			lo, hi, ok := strings.Cut(c.param, ",")
			if !ok {
				return ""
			}
			minLen, _ := strconv.Atoi(strings.TrimSpace(lo))
			maxLen, _ := strconv.Atoi(strings.TrimSpace(hi))
			if l := utf8.RuneCountInString(c.value); l < minLen || l > maxLen {
				return fmt.Sprintf("The %s must be between %d and %d characters.", c.field, minLen, maxLen)
			}
			return ""
		},

		"in":     failsIf(func(c check) bool { return !inList(c.value, c.param) }, "The selected %s is invalid."),
		"not_in": failsIf(func(c check) bool { return inList(c.value, c.param) }, "The selected %s is invalid."),

		"confirmed": failsIf(func(c check) bool {
			return c.v.data[c.field+"_confirmation"] != c.value
		}, "The %s confirmation does not match."),
		"same": func(c check) string {
			if c.v.data[c.param] != c.value {
				return fmt.Sprintf("The %s and %s must match.", c.field, c.param)
			}
			return ""
		},
		"different": func(c check) string {
			if c.v.data[c.param] == c.value {
				return fmt.Sprintf("The %s and %s must be different.", c.field, c.param)
			}
			return ""
		},

		"alpha":      failsIf(func(c check) bool { return !alphaRe.MatchString(c.value) }, "The %s may only contain letters."),
		"alpha_num":  failsIf(func(c check) bool { return !alphaNumRe.MatchString(c.value) }, "The %s may only contain letters and numbers."),
		"alpha_dash": failsIf(func(c check) bool { return !alphaDashRe.MatchString(c.value) }, "The %s may only contain letters, numbers, dashes and underscores."),
		"regex": failsIf(func(c check) bool {
			re, err := regexp.Compile(c.param)
			return err != nil || !re.MatchString(c.value)
		}, "The %s format is invalid."),

		"gt":  compare(func(f, t float64) bool { return f > t }, "The %s must be greater than %s."),
		"gte": compare(func(f, t float64) bool { return f >= t }, "The %s must be greater than or equal to %s."),
		"lt":  compare(func(f, t float64) bool { return f < t }, "The %s must be less than %s."),
		"lte": compare(func(f, t float64) bool { return f <= t }, "The %s must be less than or equal to %s."),
	}
}

func skipEmpty(c check) string {
	if c.value == "" {
		return skip
	}
	return ""
}

// failsIf reports format, filled with the field name, when bad holds.
func failsIf(bad func(c check) bool, format string) ruleFunc {
	return func(c check) string {
		if bad(c) {
			return fmt.Sprintf(format, c.field)
		}
		return ""
	}
}

func length(ok func(l, n int) bool, format string) ruleFunc {
	return func(c check) string {
		n, _ := strconv.Atoi(c.param)
		if !ok(utf8.RuneCountInString(c.value), n) {
			return fmt.Sprintf(format, c.field, n)
		}
		return ""
	}
}

func compare(ok func(f, t float64) bool, format string) ruleFunc {
	return func(c check) string {
		f, _ := strconv.ParseFloat(c.value, 64)
		t, _ := strconv.ParseFloat(c.param, 64)
		if !ok(f, t) {
			return fmt.Sprintf(format, c.field, c.param)
		}
		return ""
	}
}

func inList(value, list string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == value {
			return true
		}
	}
	return false
}

// DateLayouts are the formats accepted by the date rule and ParseDate, in
// the order they are tried. Unix seconds are accepted too.
var DateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", time.DateOnly}

// ParseDate parses s with DateLayouts in the local time zone.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0), true
	}
	return time.Time{}, false
}
