package opus

import "strings"

// Control request ids understood by the native codec. Setters take a value;
// getters (odd ids) write one back and can only be used with
// [Session.EncoderCTL] and [Session.DecoderCTL].
const (
	CtlSetApplication        = 4000
	CtlGetApplication        = 4001
	CtlSetBitrate            = 4002
	CtlGetBitrate            = 4003
	CtlSetMaxBandwidth       = 4004
	CtlGetMaxBandwidth       = 4005
	CtlSetVBR                = 4006
	CtlGetVBR                = 4007
	CtlSetBandwidth          = 4008
	CtlGetBandwidth          = 4009
	CtlSetComplexity         = 4010
	CtlGetComplexity         = 4011
	CtlSetInbandFEC          = 4012
	CtlGetInbandFEC          = 4013
	CtlSetPacketLossPerc     = 4014
	CtlGetPacketLossPerc     = 4015
	CtlSetDTX                = 4016
	CtlGetDTX                = 4017
	CtlSetVBRConstraint      = 4020
	CtlGetVBRConstraint      = 4021
	CtlSetForceChannels      = 4022
	CtlGetForceChannels      = 4023
	CtlSetSignal             = 4024
	CtlGetSignal             = 4025
	CtlGetLookahead          = 4027
	CtlResetState            = 4028
	CtlGetSampleRate         = 4029
	CtlGetFinalRange         = 4031
	CtlGetPitch              = 4033
	CtlSetGain               = 4034
	CtlSetLSBDepth           = 4036
	CtlGetLSBDepth           = 4037
	CtlGetLastPacketDuration = 4039
	CtlGetGain               = 4045
	CtlSetPhaseInversionOff  = 4046
	CtlGetPhaseInversionOff  = 4047
)

// Special control values.
const (
	// Auto lets the codec choose (bitrate, signal, bandwidth, force channels).
	Auto = -1000

	// BitrateMax requests the highest bitrate the frame size allows.
	BitrateMax = -1
)

// Signal hints for [CtlSetSignal].
const (
	SignalVoice = 3001
	SignalMusic = 3002
)

// Bandwidth values for [CtlSetBandwidth] and [CtlSetMaxBandwidth].
const (
	BandwidthNarrowband    = 1101
	BandwidthMediumband    = 1102
	BandwidthWideband      = 1103
	BandwidthSuperwideband = 1104
	BandwidthFullband      = 1105
)

// IsGetter reports whether request reads a value back rather than applying
// one.
func IsGetter(request int) bool {
	return request%2 == 1
}

// ctlNames maps configuration names to setter request ids.
var ctlNames = map[string]int{
	"application":         CtlSetApplication,
	"bitrate":             CtlSetBitrate,
	"max_bandwidth":       CtlSetMaxBandwidth,
	"vbr":                 CtlSetVBR,
	"bandwidth":           CtlSetBandwidth,
	"complexity":          CtlSetComplexity,
	"inband_fec":          CtlSetInbandFEC,
	"packet_loss_perc":    CtlSetPacketLossPerc,
	"dtx":                 CtlSetDTX,
	"vbr_constraint":      CtlSetVBRConstraint,
	"force_channels":      CtlSetForceChannels,
	"signal":              CtlSetSignal,
	"reset_state":         CtlResetState,
	"gain":                CtlSetGain,
	"lsb_depth":           CtlSetLSBDepth,
	"phase_inversion_off": CtlSetPhaseInversionOff,
}

// LookupCTL returns the setter request id registered under name.
func LookupCTL(name string) (int, bool) {
	req, ok := ctlNames[strings.ToLower(strings.TrimSpace(name))]
	return req, ok
}
