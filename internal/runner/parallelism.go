package runner

import (
	"fmt"
	"strconv"
	"strings"
)

// ParallelismMax is the sentinel meaning "use all available slots".
const ParallelismMax = "max"

// InvalidParallelismError is returned at engine construction when the
// parallelism value is neither a positive integer literal nor the "max"
// sentinel.
type InvalidParallelismError struct {
	Value string
}

func (e *InvalidParallelismError) Error() string {
	return fmt.Sprintf("invalid parallelism %q: expected a positive integer or %q", e.Value, ParallelismMax)
}

// ParseParallelism parses the configured parallelism. Returns the slot
// count, with 0 meaning unbounded.
func ParseParallelism(value string) (int, error) {
	v := strings.TrimSpace(value)
	if v == ParallelismMax {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &InvalidParallelismError{Value: value}
	}
	return n, nil
}
