package testutil

import (
	"os"
	"strconv"
	"time"
)

// Scaled returns d scaled by $REPLD_TEST_TIME_SCALE. If the environment
// variable does not exist or contains an invalid value, the scale defaults to
// 1. It is useful in tests that wait for events with a timeout: a slow
// machine can set the variable to leave more headroom.
func Scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * getTestTimeScale())
}

func getTestTimeScale() float64 {
	env := os.Getenv("REPLD_TEST_TIME_SCALE")
	if env == "" {
		return 1
	}
	scale, err := strconv.ParseFloat(env, 64)
	if err != nil || scale <= 0 {
		return 1
	}
	return scale
}
