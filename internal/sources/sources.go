// Package sources fetches live signal snapshots from the upstream flight,
// sensor, and weather providers. The providers are swappable data sources
// behind fixed interfaces; the engine carries no real integration logic
// beyond fetching and mapping.
package sources

import (
	"context"

	"github.com/northcover/parametric-cli/internal/model"
)

// FlightProvider returns the status reading for a flight on a given date.
type FlightProvider interface {
	FlightStatus(ctx context.Context, flightID, date string) (*model.FlightSignal, error)
}

// PropertyProvider returns the sensor reading for a property.
type PropertyProvider interface {
	PropertyReading(ctx context.Context, propertyID string) (*PropertyReading, error)
}

// WeatherProvider returns the current weather for the product's fixed
// coordinate.
type WeatherProvider interface {
	CurrentWeather(ctx context.Context) (*WeatherReading, error)
}

// PropertyReading is the raw sensor payload for a property.
type PropertyReading struct {
	NoiseLevelDb          *float64 `json:"noise_level_db,omitempty"`
	SafetyIndex           *float64 `json:"safety_index,omitempty"`
	NearbyConstruction    *bool    `json:"nearby_construction,omitempty"`
	PublicTransportStatus string   `json:"public_transport_status,omitempty"`
	Address               string   `json:"address,omitempty"`
}

// WeatherReading is the raw weather payload for the fixed coordinate.
type WeatherReading struct {
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
	PrecipitationMm *float64 `json:"precipitation_mm,omitempty"`
	WindSpeedKmh    *float64 `json:"wind_speed_kmh,omitempty"`
	Time            string   `json:"time,omitempty"`
}

// MergeProperty combines a sensor reading and a weather reading into one
// property signal. Either input may be nil; absent dimensions stay nil and
// resolve to unknown checks downstream.
func MergeProperty(pr *PropertyReading, wr *WeatherReading) model.PropertySignal {
	var sig model.PropertySignal
	if pr != nil {
		sig.NoiseLevelDb = pr.NoiseLevelDb
		sig.SafetyIndex = pr.SafetyIndex
		sig.NearbyConstruction = pr.NearbyConstruction
	}
	if wr != nil {
		sig.PrecipitationMm = wr.PrecipitationMm
		sig.WindSpeedKmh = wr.WindSpeedKmh
	}
	return sig
}
