// Package clock provides the simulated time source shared by every node in a
// benchmark run. All bidding-state timing decisions read this clock instead of
// wall time, so nodes started minutes apart still agree on a single timeline.
package clock

import "time"

// Clock is the process-wide time source.
type Clock interface {
	Now() time.Time
}
