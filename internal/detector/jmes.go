package detector

import (
	"fmt"
	"math"
	"scootspot/internal/types"

	"github.com/jmespath/go-jmespath"
	log "github.com/sirupsen/logrus"
)

// CounterCountsExpr maps the `{"electric_scooters": n, "bicycles": m}` response of the counter
// service's /count endpoint onto class labels. It is the default expression.
const CounterCountsExpr = "{electric_scooter: electric_scooters, bicycle: bicycles}"

// DetectionsExpr builds the expression for servers that return raw detections. It keeps the class
// of every detection scoring at least minConfidence.
func DetectionsExpr(minConfidence float64) string {
	return fmt.Sprintf("detections[?confidence >= `%g`].class", minConfidence)
}

// EvalAny returns the raw value selected by the JMESPath expression.
// It will return nil and no error if the expression does not match anything.
func EvalAny(expression string, payload any) (any, error) {
	v, err := jmespath.Search(expression, payload)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}

// CountsFromResult evaluates expression against a decoded inference response. The selection
// may be a list of labels (one entry per detection) or an object of label to occurrences.
// A null selection means the response does not have the shape the expression expects, which is
// an error; nothing detected is an empty list or zero counts.
func CountsFromResult(expression string, payload any) (types.Counts, error) {
	v, err := EvalAny(expression, payload)
	if err != nil {
		return nil, err
	}
	counts := types.NewCounts()
	switch t := v.(type) {
	case nil:
		return nil, fmt.Errorf("expression %q selects nothing from the response", expression)
	case []any:
		for _, item := range t {
			label, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("label list holds %T, want string", item)
			}
			log.WithField("label", label).Debug("Detected object")
			counts.Add(label, 1)
		}
	case map[string]any:
		for label, raw := range t {
			n, err := toCount(raw)
			if err != nil {
				return nil, fmt.Errorf("count for %q: %w", label, err)
			}
			counts.Add(label, n)
		}
	default:
		return nil, fmt.Errorf("expression yields %T, want list or object", v)
	}
	return counts, nil
}

func toCount(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing from the response")
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, fmt.Errorf("not a non-negative integer: %v", n)
		}
		return int(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("negative count %d", n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}
