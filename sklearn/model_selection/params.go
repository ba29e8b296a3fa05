package model_selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/befresh/phmodel/metrics"
	"github.com/befresh/phmodel/pkg/errors"
)

// ParamGrid maps a parameter name to the candidate values to try.
type ParamGrid map[string][]interface{}

// Params is one hyperparameter combination.
type Params map[string]interface{}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the params like a Python dict literal with sorted keys,
// e.g. {'max_depth': 10, 'n_estimators': 100}.
func (p Params) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': %s", k, formatValue(p[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// Short renders the params as "k=v, k=v" for per-fit log lines.
func (p Params) Short() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, k+"="+formatValue(p[k]))
	}
	return strings.Join(parts, ", ")
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return "'" + x + "'"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return metrics.FormatFloat(x)
	default:
		return fmt.Sprint(x)
	}
}

// ParameterGrid enumerates every combination of grid. Keys are sorted and
// the first key varies slowest, so the order is stable across runs.
func ParameterGrid(grid ParamGrid) ([]Params, error) {
	if len(grid) == 0 {
		return nil, errors.NewValueError("ParameterGrid", "parameter grid is empty")
	}

	keys := make([]string, 0, len(grid))
	total := 1
	for k, values := range grid {
		if len(values) == 0 {
			return nil, errors.NewValidationError(k, "parameter grid values must be a non-empty list", values)
		}
		keys = append(keys, k)
		total *= len(values)
	}
	sort.Strings(keys)

	out := make([]Params, 0, total)
	counter := make([]int, len(keys))
	for c := 0; c < total; c++ {
		p := make(Params, len(keys))
		for i, k := range keys {
			p[k] = grid[k][counter[i]]
		}
		out = append(out, p)

		// odometer increment, last key fastest
		for i := len(keys) - 1; i >= 0; i-- {
			counter[i]++
			if counter[i] < len(grid[keys[i]]) {
				break
			}
			counter[i] = 0
		}
	}
	return out, nil
}
