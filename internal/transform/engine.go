package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// TimestampFormat is the canonical rendering of date/time values.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

const defaultPrecision = 2

var errNotObject = errors.New("record is not an object")

// Engine transforms records according to a domain.Mapping.
type Engine struct{}

// NewEngine creates a transform engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Transform projects record through m. It returns the transformed record and
// whether it passed every filter transformation.
func (e *Engine) Transform(record any, m domain.Mapping) (map[string]any, bool, error) {
	src, ok := record.(map[string]any)
	if !ok {
		return nil, false, &domain.TransformError{Err: fmt.Errorf("%w: got %T", errNotObject, record)}
	}

	out := make(map[string]any, len(m.TargetFields)+len(m.Transformations))
	for i, sourceField := range m.SourceFields {
		if i >= len(m.TargetFields) {
			break
		}
		targetField := m.TargetFields[i]
		if sourceField == "" || targetField == "" {
			continue
		}
		if v, present := src[sourceField]; present {
			out[targetField] = v
		}
	}

	include := true
	for _, t := range m.Transformations {
		if t.TargetField == "" {
			return nil, false, &domain.TransformError{
				Field: t.SourceField,
				Err:   fmt.Errorf("%w: %s transformation has no target field", domain.ErrInvalidInput, t.Type),
			}
		}

		value, present := src[t.SourceField]
		switch t.Type {
		case domain.TransformMap:
			if present {
				out[t.TargetField] = Map(value, t.Expression)
			}
		case domain.TransformFormat:
			if present {
				out[t.TargetField] = Format(value, t.Expression)
			}
		case domain.TransformCalculate:
			out[t.TargetField] = Calculate(src, t.Expression)
		case domain.TransformFilter:
			keep := Filter(value, present, t.Expression)
			out[t.TargetField] = keep
			include = include && keep
		default:
			if present {
				out[t.TargetField] = value
			}
		}
	}

	return out, include, nil
}

// Map looks value up in the JSON object expression. Values without an entry,
// or with a null entry, pass through unchanged, as does everything when the
// expression is not a JSON object.
func Map(value any, expression string) any {
	var table map[string]any
	if err := json.Unmarshal([]byte(expression), &table); err != nil {
		logger.Warn("transform: invalid map expression %q: %v", expression, err)
		return value
	}
	if mapped, ok := table[keyOf(value)]; ok && mapped != nil {
		return mapped
	}
	return value
}

// Format renders value according to expression:
// strings substitute the first {value} placeholder (or, when the expression
// has no placeholder and the string is an RFC3339 timestamp, are
// canonicalised); time.Time is canonicalised; numbers are rendered with the
// number of fractional digits given by the expression, defaulting to 2.
func Format(value any, expression string) any {
	switch v := value.(type) {
	case string:
		if !strings.Contains(expression, "{value}") {
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return ts.UTC().Format(TimestampFormat)
			}
		}
		return strings.Replace(expression, "{value}", v, 1)
	case time.Time:
		return v.UTC().Format(TimestampFormat)
	case *time.Time:
		if v == nil {
			return value
		}
		return v.UTC().Format(TimestampFormat)
	}

	if f, ok := toFloat(value); ok {
		return strconv.FormatFloat(f, 'f', precision(expression), 64)
	}
	return value
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_+\-*/().\s]`)

// Calculate evaluates expression against the record's numeric fields.
// Characters outside the arithmetic alphabet are stripped first. Any
// evaluation failure, including a reference to a missing or non-numeric
// field, yields 0.
func Calculate(record map[string]any, expression string) float64 {
	sanitized := unsafeChars.ReplaceAllString(expression, "")

	vars := make(map[string]float64, len(record))
	for k, v := range record {
		if f, ok := toFloat(v); ok {
			vars[k] = f
		}
	}

	result, err := Evaluate(sanitized, vars)
	if err != nil {
		logger.Warn("transform: calculate %q: %v", expression, err)
		return 0
	}
	return result
}

type filterRule struct {
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Filter evaluates the JSON condition {operator, value} against value.
// Malformed conditions and unknown operators evaluate to true.
func Filter(value any, present bool, expression string) bool {
	var rule filterRule
	if err := json.Unmarshal([]byte(expression), &rule); err != nil {
		logger.Warn("transform: invalid filter expression %q: %v", expression, err)
		return true
	}

	switch rule.Operator {
	case "equals":
		return present && equal(value, rule.Value)
	case "contains":
		return present && value != nil && strings.Contains(keyOf(value), keyOf(rule.Value))
	case "greater_than":
		c, ok := compare(value, rule.Value)
		return present && ok && c > 0
	case "less_than":
		c, ok := compare(value, rule.Value)
		return present && ok && c < 0
	default:
		return true
	}
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// keyOf renders a value the way it is used as a lookup key.
func keyOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// precision parses the leading integer of expression.
func precision(expression string) int {
	s := strings.TrimSpace(expression)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	p, err := strconv.Atoi(s[:end])
	if err != nil || p > 20 {
		return defaultPrecision
	}
	return p
}

// toFloat reports the value of a native number. Numeric strings are not
// numbers.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
