// README: Common value objects shared across modules.
package types

// ID is an opaque identifier (session ids, vehicle ids).
type ID string

// Point is a GPS fix in decimal degrees.
type Point struct {
    Lat float64 `json:"lat"`
    Lng float64 `json:"lng"`
}

// IsZero reports whether the point carries no fix. Providers emit 0,0 when
// the GPS has not locked yet.
func (p Point) IsZero() bool {
    return p.Lat == 0 && p.Lng == 0
}
