package opus

import (
	"fmt"
	"strings"
)

// Application selects the encoder tuning profile. It has no effect on
// decoding.
type Application int

const (
	// ApplicationVoIP favours speech intelligibility.
	ApplicationVoIP Application = 2048

	// ApplicationAudio favours faithfulness to the input signal.
	ApplicationAudio Application = 2049

	// ApplicationRestrictedLowDelay disables the speech-optimised modes to
	// get the lowest achievable latency.
	ApplicationRestrictedLowDelay Application = 2051
)

// String returns the configuration name of a.
func (a Application) String() string {
	switch a {
	case ApplicationVoIP:
		return "voip"
	case ApplicationAudio:
		return "audio"
	case ApplicationRestrictedLowDelay:
		return "lowdelay"
	default:
		return fmt.Sprintf("application(%d)", int(a))
	}
}

// IsValid reports whether a is one of the known profiles.
func (a Application) IsValid() bool {
	switch a {
	case ApplicationVoIP, ApplicationAudio, ApplicationRestrictedLowDelay:
		return true
	}
	return false
}

// ParseApplication maps a configuration name ("voip", "audio", "lowdelay")
// to an [Application]. Matching is case-insensitive.
func ParseApplication(name string) (Application, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "voip":
		return ApplicationVoIP, nil
	case "audio":
		return ApplicationAudio, nil
	case "lowdelay", "restricted_lowdelay":
		return ApplicationRestrictedLowDelay, nil
	}
	return 0, fmt.Errorf("opus: unknown application %q; valid values: voip, audio, lowdelay", name)
}
