package sources

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/northcover/parametric-cli/internal/model"
)

// flightResponse is the wire shape of the flight data provider.
type flightResponse struct {
	Status                string `json:"status"`
	DelayMinutes          *int   `json:"delay_minutes"`
	DepartureAirport      string `json:"departure_airport"`
	ArrivalAirport        string `json:"arrival_airport"`
	ScheduledDepartureUTC string `json:"scheduled_departure_utc"`
	ThresholdMinutes      int    `json:"threshold_minutes"`
	PayoutTier            *int   `json:"payout_tier"`
	PayoutPercent         *int   `json:"payout_percent"`
	PayoutReason          string `json:"payout_reason"`
}

// HTTPFlightProvider fetches flight status through an ordered-fallback
// resolver over one or more provider mirrors.
type HTTPFlightProvider struct {
	resolver *Resolver
}

// NewHTTPFlightProvider creates a flight provider over candidate base URLs.
func NewHTTPFlightProvider(baseURLs []string, timeout time.Duration) *HTTPFlightProvider {
	return &HTTPFlightProvider{resolver: NewResolver("flight", baseURLs, timeout)}
}

func (p *HTTPFlightProvider) FlightStatus(ctx context.Context, flightID, date string) (*model.FlightSignal, error) {
	if flightID == "" {
		return nil, eris.New("sources: flight id is required")
	}

	path := "/flights/" + url.PathEscape(flightID)
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}

	var resp flightResponse
	if err := p.resolver.GetJSON(ctx, path, &resp); err != nil {
		return nil, eris.Wrapf(err, "sources: flight status %s", flightID)
	}

	status := model.FlightStatus(resp.Status)
	switch status {
	case model.FlightOnTime, model.FlightDelayed, model.FlightCancelled:
	default:
		status = model.FlightUnknown
	}

	return &model.FlightSignal{
		Status:           status,
		DelayMinutes:     resp.DelayMinutes,
		ThresholdMinutes: resp.ThresholdMinutes,
		PayoutTier:       resp.PayoutTier,
		PayoutPercent:    resp.PayoutPercent,
		PayoutReason:     resp.PayoutReason,
	}, nil
}

// HTTPPropertyProvider fetches sensor readings for a property.
type HTTPPropertyProvider struct {
	resolver *Resolver
}

// NewHTTPPropertyProvider creates a property sensor provider.
func NewHTTPPropertyProvider(baseURLs []string, timeout time.Duration) *HTTPPropertyProvider {
	return &HTTPPropertyProvider{resolver: NewResolver("property", baseURLs, timeout)}
}

func (p *HTTPPropertyProvider) PropertyReading(ctx context.Context, propertyID string) (*PropertyReading, error) {
	if propertyID == "" {
		return nil, eris.New("sources: property id is required")
	}

	var reading PropertyReading
	if err := p.resolver.GetJSON(ctx, "/properties/"+url.PathEscape(propertyID), &reading); err != nil {
		return nil, eris.Wrapf(err, "sources: property reading %s", propertyID)
	}
	return &reading, nil
}

// HTTPWeatherProvider fetches current weather for the product's coordinate.
type HTTPWeatherProvider struct {
	resolver *Resolver
}

// NewHTTPWeatherProvider creates a weather provider.
func NewHTTPWeatherProvider(baseURLs []string, timeout time.Duration) *HTTPWeatherProvider {
	return &HTTPWeatherProvider{resolver: NewResolver("weather", baseURLs, timeout)}
}

func (p *HTTPWeatherProvider) CurrentWeather(ctx context.Context) (*WeatherReading, error) {
	var reading WeatherReading
	if err := p.resolver.GetJSON(ctx, "/weather/current", &reading); err != nil {
		return nil, eris.Wrap(err, "sources: current weather")
	}
	return &reading, nil
}
