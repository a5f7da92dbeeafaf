// README: Canonical telemetry sample and motion fingerprint.
package telemetry

import (
	"time"

	"drivesafe/internal/types"
)

// Sample is one polled OBD/phone reading normalized from the provider payload.
// Missing numeric fields are zero.
type Sample struct {
	Speed             float64
	RPM               float64
	Acceleration      float64
	ThrottlePosition  float64
	EngineTemperature float64
	SystemVoltage     float64
	DistanceTravelled float64
	EngineLoad        float64
	Brake             float64

	Position types.Point
	Altitude float64

	AmbientTemperature float64
	Humidity           float64
	Precipitation      float64
	WindSpeed          float64
	Visibility         float64

	VehicleID types.ID
	DriverID  types.ID

	CapturedAt time.Time
}

// Moving reports whether the reading indicates the vehicle is in motion or the engine is running.
func (s Sample) Moving() bool {
	return s.Speed > 0 || s.RPM > 0
}

// Fingerprint is the motion snapshot compared across consecutive polls to detect a frozen or idle feed.
type Fingerprint struct {
	Speed            float64
	RPM              float64
	ThrottlePosition float64
}

func (s Sample) Fingerprint() Fingerprint {
	return Fingerprint{
		Speed:            s.Speed,
		RPM:              s.RPM,
		ThrottlePosition: s.ThrottlePosition,
	}
}
