package reduce

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// forbiddenKeys name structures that must never cross the reduction
// boundary: the full pairwise matrix and the complete per-value frequency
// table. The typed IndicatorSet cannot carry them, so this scan is a second
// line of defense against future fields reintroducing them.
var forbiddenKeys = []string{"correlation_matrix", "frequency"}

// ForbiddenKeys returns which forbidden keys appear in a serialized
// indicator set. Empty means the boundary holds.
func ForbiddenKeys(b []byte) []string {
	var found []string
	for _, key := range forbiddenKeys {
		if bytes.Contains(b, []byte(`"`+key+`":`)) {
			found = append(found, key)
		}
	}
	return found
}

// scrubForbidden strips forbidden keys out of serialized indicators,
// returning the input unchanged when the boundary already holds.
func scrubForbidden(b []byte) ([]byte, error) {
	if len(ForbiddenKeys(b)) == 0 {
		return b, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, errors.Wrap(err, "scrub indicators")
	}
	stripKeys(v)
	out, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "scrub indicators")
	}
	return out, nil
}

func stripKeys(v any) {
	switch node := v.(type) {
	case map[string]any:
		for _, key := range forbiddenKeys {
			delete(node, key)
		}
		for _, child := range node {
			stripKeys(child)
		}
	case []any:
		for _, child := range node {
			stripKeys(child)
		}
	}
}
