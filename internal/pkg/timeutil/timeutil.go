package timeutil

import "time"

// NowUnix is the single clock for persisted epoch-second timestamps.
func NowUnix() int64 {
	return time.Now().Unix()
}
