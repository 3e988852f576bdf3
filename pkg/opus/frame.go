package opus

import "time"

// frameDurations lists the frame durations the codec accepts, shortest first.
var frameDurations = []time.Duration{
	2500 * time.Microsecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	60 * time.Millisecond,
}

// ValidFrameDuration reports whether d is one of 2.5, 5, 10, 20, 40 or 60 ms.
func ValidFrameDuration(d time.Duration) bool {
	for _, fd := range frameDurations {
		if d == fd {
			return true
		}
	}
	return false
}

// FrameSize returns the number of samples per channel in a frame of
// duration d at sampleRate.
func FrameSize(sampleRate int, d time.Duration) int {
	return int(int64(sampleRate) * int64(d) / int64(time.Second))
}

// FrameSizes returns the legal per-channel frame sizes at sampleRate,
// shortest first.
func FrameSizes(sampleRate int) []int {
	sizes := make([]int, len(frameDurations))
	for i, d := range frameDurations {
		sizes[i] = FrameSize(sampleRate, d)
	}
	return sizes
}
