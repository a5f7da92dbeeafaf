// README: Provider payload normalization into the canonical Sample.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"drivesafe/internal/types"
)

// Field aliases in lookup order. Phone OBD apps disagree on naming, so every
// field accepts snake_case, camelCase and a few vendor spellings.
var (
	speedKeys        = []string{"speed", "vehicle_speed", "vehicleSpeed"}
	rpmKeys          = []string{"rpm", "engine_rpm", "engineRpm"}
	accelerationKeys = []string{"acceleration", "accel"}
	throttleKeys     = []string{"throttle_position", "throttlePosition", "throttle"}
	engineTempKeys   = []string{"engine_temperature", "engineTemperature", "coolant_temperature"}
	voltageKeys      = []string{"system_voltage", "systemVoltage", "battery_voltage", "voltage"}
	distanceKeys     = []string{"distance_travelled", "distanceTravelled", "distance"}
	engineLoadKeys   = []string{"engine_load_value", "engineLoadValue", "engine_load", "engineLoad"}
	brakeKeys        = []string{"brake", "brake_pressure", "brakePressure"}
	latKeys          = []string{"lat", "latitude", "gps_lat"}
	lngKeys          = []string{"lon", "lng", "longitude", "gps_lon"}
	altitudeKeys     = []string{"altitude", "alt", "gps_alt"}
	ambientTempKeys  = []string{"ambient_temperature", "ambientTemperature", "temperature", "air_temperature"}
	humidityKeys     = []string{"humidity"}
	precipKeys       = []string{"precipitation", "rain"}
	windKeys         = []string{"wind_speed", "windSpeed"}
	visibilityKeys   = []string{"visibility"}
	vehicleKeys      = []string{"vehicle_id", "vehicleId"}
	driverKeys       = []string{"driver_id", "driverId", "user_id", "userId"}
)

// Normalize maps a raw provider body to a Sample. The body may be a flat
// object or wrap the reading under "data"; values nested under "data" win over
// top-level ones. Numbers may also arrive as numeric strings. capturedAt is the
// poll time, since providers do not reliably timestamp readings.
func Normalize(body []byte, capturedAt time.Time) (Sample, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if raw == nil {
		return Sample{}, fmt.Errorf("%w: payload is not an object", ErrParse)
	}

	fields := raw
	if nested, ok := raw["data"].(map[string]any); ok {
		fields = make(map[string]any, len(raw)+len(nested))
		for k, v := range raw {
			fields[k] = v
		}
		for k, v := range nested {
			fields[k] = v
		}
	}

	return Sample{
		Speed:              number(fields, speedKeys),
		RPM:                number(fields, rpmKeys),
		Acceleration:       number(fields, accelerationKeys),
		ThrottlePosition:   number(fields, throttleKeys),
		EngineTemperature:  number(fields, engineTempKeys),
		SystemVoltage:      number(fields, voltageKeys),
		DistanceTravelled:  number(fields, distanceKeys),
		EngineLoad:         number(fields, engineLoadKeys),
		Brake:              number(fields, brakeKeys),
		Position:           types.Point{Lat: number(fields, latKeys), Lng: number(fields, lngKeys)},
		Altitude:           number(fields, altitudeKeys),
		AmbientTemperature: number(fields, ambientTempKeys),
		Humidity:           number(fields, humidityKeys),
		Precipitation:      number(fields, precipKeys),
		WindSpeed:          number(fields, windKeys),
		Visibility:         number(fields, visibilityKeys),
		VehicleID:          types.ID(text(fields, vehicleKeys)),
		DriverID:           types.ID(text(fields, driverKeys)),
		CapturedAt:         capturedAt,
	}, nil
}

// number returns the first alias that coerces to a finite number, else 0.
func number(fields map[string]any, keys []string) float64 {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case bool:
		if t {
			f = 1
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// text returns identifiers that may be sent as strings or numbers.
func text(fields map[string]any, keys []string) string {
	for _, k := range keys {
		switch t := fields[k].(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		}
	}
	return ""
}
