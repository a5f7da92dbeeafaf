// README: Live-trip ingestion payload mapped from a telemetry sample.
package ingest

import (
	"strconv"

	"drivesafe/internal/modules/telemetry"
	"drivesafe/internal/types"
)

// LivePayload is the body of POST /live. Every numeric field is always
// present; identifiers that are not numeric are sent as 0.
type LivePayload struct {
	SessionID         string  `json:"sessionId"`
	VehicleID         int64   `json:"vehicleId"`
	DriverID          int64   `json:"driverId"`
	Speed             float64 `json:"speed"`
	RPM               float64 `json:"rpm"`
	Acceleration      float64 `json:"acceleration"`
	ThrottlePosition  float64 `json:"throttlePosition"`
	EngineTemperature float64 `json:"engineTemperature"`
	SystemVoltage     float64 `json:"systemVoltage"`
	DistanceTravelled float64 `json:"distanceTravelled"`
	EngineLoadValue   float64 `json:"engineLoadValue"`
	Brake             float64 `json:"brake"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	Altitude          float64 `json:"altitude"`
	Temperature       float64 `json:"temperature"`
	Humidity          float64 `json:"humidity"`
	Precipitation     float64 `json:"precipitation"`
	WindSpeed         float64 `json:"windSpeed"`
	Visibility        float64 `json:"visibility"`
	Timestamp         int64   `json:"timestamp"`
}

func NewLivePayload(sessionID types.ID, s telemetry.Sample) LivePayload {
	p := LivePayload{
		SessionID:         string(sessionID),
		VehicleID:         numericID(s.VehicleID),
		DriverID:          numericID(s.DriverID),
		Speed:             s.Speed,
		RPM:               s.RPM,
		Acceleration:      s.Acceleration,
		ThrottlePosition:  s.ThrottlePosition,
		EngineTemperature: s.EngineTemperature,
		SystemVoltage:     s.SystemVoltage,
		DistanceTravelled: s.DistanceTravelled,
		EngineLoadValue:   s.EngineLoad,
		Brake:             s.Brake,
		Latitude:          s.Position.Lat,
		Longitude:         s.Position.Lng,
		Altitude:          s.Altitude,
		Temperature:       s.AmbientTemperature,
		Humidity:          s.Humidity,
		Precipitation:     s.Precipitation,
		WindSpeed:         s.WindSpeed,
		Visibility:        s.Visibility,
	}
	if !s.CapturedAt.IsZero() {
		p.Timestamp = s.CapturedAt.UnixMilli()
	}
	return p
}

func numericID(id types.ID) int64 {
	if id == "" {
		return 0
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(string(id), 64); err == nil {
		return int64(f)
	}
	return 0
}
