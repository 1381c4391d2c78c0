package status

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNormalization is the sentinel matched by every NormalizationError.
var ErrNormalization = errors.New("unrecognized task status payload")

// NormalizationError is returned when a raw payload carries none of the known
// status field aliases, or is not a JSON object at all.
type NormalizationError struct {
	TaskID string
	// Keys lists the top-level keys that were present in the payload.
	Keys []string
	// Shape names the JSON type of a payload that is not an object.
	Shape string
}

// Error implements the error interface for NormalizationError.
func (e *NormalizationError) Error() string {
	if e.Shape != "" {
		return fmt.Sprintf("normalize status for task %s: payload is a JSON %s, not an object", e.TaskID, e.Shape)
	}
	if len(e.Keys) == 0 {
		return fmt.Sprintf("normalize status for task %s: empty payload", e.TaskID)
	}
	return fmt.Sprintf(
		"normalize status for task %s: no status field among keys [%s]",
		e.TaskID,
		strings.Join(e.Keys, ", "),
	)
}

// Is reports whether target is ErrNormalization.
func (e *NormalizationError) Is(target error) bool {
	return target == ErrNormalization
}
