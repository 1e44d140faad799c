package feed

import "math"

// Threshold bounds for the scroll trigger position.
const (
	thresholdFloor = 0.6
	thresholdCeil  = 0.95
)

// DynamicThreshold returns the normalized scroll position past which the
// next batch should be triggered, as a function of how many URLs have been
// consumed. The more content has already been loaded, the faster the user is
// assumed to scroll, so the controller waits closer to the edge before
// prefetching: a larger safety margin early, lower memory and network
// pressure later.
//
// The function is monotonically non-decreasing and bounded to [0.6, 0.95].
func DynamicThreshold(consumed int) float64 {
	if consumed <= 0 {
		return thresholdFloor
	}
	t := thresholdFloor + 0.1*math.Log(float64(consumed)+1)
	if t < thresholdFloor {
		return thresholdFloor
	}
	if t > thresholdCeil {
		return thresholdCeil
	}
	return t
}
