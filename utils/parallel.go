package utils

import (
	"os"
	"runtime"
	"strconv"
)

// ParallelFactor bounds how many bodies are decomposed at once. It defaults to a quarter of the
// available procs, at least one, and can be overridden with PROXIMITY_NUM_THREADS.
var ParallelFactor = MaxInt(runtime.GOMAXPROCS(0)/4, 1)

func init() {
	ParallelFactor = GetenvInt("PROXIMITY_NUM_THREADS", ParallelFactor)
}

// GetenvInt returns the value of an integer environment variable, or def when it is unset,
// malformed or not positive.
func GetenvInt(name string, def int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
