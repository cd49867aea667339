package aquos

import (
	"fmt"
	"math"
	"time"
)

// PowerState is the power state observed by the client.
type PowerState int

// Power states. The zero value is PowerUnknown: nothing has been read yet.
const (
	PowerUnknown PowerState = iota
	PowerOn
	PowerOff
)

func (p PowerState) String() string {
	switch p {
	case PowerUnknown:
		return "unknown"
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return fmt.Sprintf("PowerState(%d)", int(p))
	}
}

// MarshalText renders the state as "unknown", "on" or "off".
func (p PowerState) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Power-on command acceptance settings (power_control).
const (
	PowerOnDisabled = 0
	PowerOnSerial   = 1
	PowerOnNetwork  = 2
)

// Wire values used by Update.
const (
	// volumeScale converts the wire volume into the fraction callers expect.
	// The TV reports 0-100 but callers were built around 60 as full scale,
	// so 60 and above saturate at 1.0 or more. Kept for compatibility.
	volumeScale = 60

	muteOff = 2
	powerOn = 1
)

// State is the last committed result of Update.
type State struct {
	Power PowerState `json:"power"`
	Muted bool       `json:"muted"`

	// Volume is the wire volume divided by 60.
	Volume      float64 `json:"volume"`
	VolumeKnown bool    `json:"volume_known"`

	// Input is only meaningful when InputKnown is set.
	Input      Input `json:"input"`
	InputKnown bool  `json:"input_known"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Equal reports whether two states carry the same device values.
// UpdatedAt is ignored.
func (s State) Equal(o State) bool {
	return s.Power == o.Power &&
		s.Muted == o.Muted &&
		s.Volume == o.Volume &&
		s.VolumeKnown == o.VolumeKnown &&
		s.Input == o.Input &&
		s.InputKnown == o.InputKnown
}

// WireVolume converts the volume fraction back to the wire scale. It
// rounds because Volume came from dividing a wire level by volumeScale and
// the product may land just below that level; caller supplied fractions
// go through SetVolumeLevel, which truncates.
func (s State) WireVolume() int {
	return int(math.Round(s.Volume * volumeScale))
}
