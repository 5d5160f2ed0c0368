package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/coinboard/internal/domain/model"
)

// Coerce turns any raw input into a non-negative integer. The textual form
// is read like a dashboard input field: leading whitespace and sign, then
// the longest run of digits. Anything unparseable and anything negative is 0.
func Coerce(raw any) int {
	var n int
	switch v := raw.(type) {
	case nil:
		return 0
	case int:
		n = v
	case int32:
		n = int(v)
	case int64:
		n = clampInt64(v)
	case float64:
		n = truncate(v)
	case float32:
		n = truncate(float64(v))
	case json.Number:
		n = coerceNumber(v)
	case json.RawMessage:
		n = coerceJSON(v)
	case []byte:
		n = parseLeadingInt(string(v))
	case string:
		n = parseLeadingInt(v)
	case bool:
		return 0
	default:
		n = parseLeadingInt(fmt.Sprint(v))
	}
	return max(n, 0)
}

func coerceJSON(b json.RawMessage) int {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0
	}
	switch t := v.(type) {
	case json.Number:
		return coerceNumber(t)
	case string:
		return parseLeadingInt(t)
	default:
		return 0
	}
}

// coerceNumber reads a JSON number by value, so exponent forms such as 1e2
// count as 100.
func coerceNumber(num json.Number) int {
	if i, err := num.Int64(); err == nil {
		return clampInt64(i)
	}
	if f, err := num.Float64(); err == nil {
		return truncate(f)
	}
	return parseLeadingInt(num.String())
}

func truncate(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func clampInt64(v int64) int {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}

func parseLeadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		// only range errors remain; saturate in the sign's direction
		if s[0] == '-' {
			return 0
		}
		return math.MaxInt32
	}
	return clampInt64(n)
}

// RetentionPatch is the replacement retention record accepted by an update.
type RetentionPatch struct {
	Inductions any `json:"inductions"`
	Renewals   any `json:"renewals"`
	Drops      any `json:"drops"`
}

// coerceRetention accepts a RetentionMetric, a RetentionPatch, a map or a JSON
// object and returns a retention record with its score derived.
func coerceRetention(raw any) (model.RetentionMetric, error) {
	switch v := raw.(type) {
	case model.RetentionMetric:
		return model.NewRetention(max(v.Inductions, 0), max(v.Renewals, 0), max(v.Drops, 0)), nil
	case *model.RetentionMetric:
		if v == nil {
			break
		}
		return coerceRetention(*v)
	case RetentionPatch:
		return model.NewRetention(Coerce(v.Inductions), Coerce(v.Renewals), Coerce(v.Drops)), nil
	case map[string]any:
		return model.NewRetention(Coerce(v["inductions"]), Coerce(v["renewals"]), Coerce(v["drops"])), nil
	case json.RawMessage:
		return decodeRetention(v)
	case []byte:
		return decodeRetention(v)
	case string:
		return decodeRetention([]byte(v))
	}
	return model.RetentionMetric{}, fmt.Errorf("retention patch of type %T: %w", raw, ErrInvalidPatch)
}

func decodeRetention(b []byte) (model.RetentionMetric, error) {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal(b, &patch); err != nil || patch == nil {
		return model.RetentionMetric{}, fmt.Errorf("retention patch: %w", ErrInvalidPatch)
	}
	return model.NewRetention(
		Coerce(patch["inductions"]),
		Coerce(patch["renewals"]),
		Coerce(patch["drops"]),
	), nil
}
