package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/northcover/parametric-cli/internal/model"
)

func TestFlightProviderMapsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/flights/NC123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("date") != "2026-08-01" {
			t.Errorf("date = %s", r.URL.Query().Get("date"))
		}
		w.Write([]byte(`{"status":"DELAYED","delay_minutes":52,"threshold_minutes":45,"departure_airport":"BCN","arrival_airport":"LHR"}`))
	}))
	defer srv.Close()

	p := NewHTTPFlightProvider([]string{srv.URL}, time.Second)
	sig, err := p.FlightStatus(context.Background(), "NC123", "2026-08-01")
	if err != nil {
		t.Fatalf("FlightStatus: %v", err)
	}

	if sig.Status != model.FlightDelayed {
		t.Errorf("status = %s, want DELAYED", sig.Status)
	}
	if sig.DelayMinutes == nil || *sig.DelayMinutes != 52 {
		t.Errorf("delay = %v, want 52", sig.DelayMinutes)
	}
	if sig.ThresholdMinutes != 45 {
		t.Errorf("threshold = %d, want 45", sig.ThresholdMinutes)
	}
}

func TestFlightProviderUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"DIVERTED","threshold_minutes":45}`))
	}))
	defer srv.Close()

	p := NewHTTPFlightProvider([]string{srv.URL}, time.Second)
	sig, err := p.FlightStatus(context.Background(), "NC1", "")
	if err != nil {
		t.Fatalf("FlightStatus: %v", err)
	}
	if sig.Status != model.FlightUnknown {
		t.Errorf("status = %s, want UNKNOWN for unrecognized value", sig.Status)
	}
}

func TestResolverFallsThroughToNextCandidate(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ON_TIME","delay_minutes":0,"threshold_minutes":45}`))
	}))
	defer alive.Close()

	p := NewHTTPFlightProvider([]string{dead.URL, alive.URL}, time.Second)
	p.resolver.retry.MaxAttempts = 1

	sig, err := p.FlightStatus(context.Background(), "NC9", "")
	if err != nil {
		t.Fatalf("FlightStatus should fall back to the second candidate: %v", err)
	}
	if sig.Status != model.FlightOnTime {
		t.Errorf("status = %s, want ON_TIME", sig.Status)
	}
}

func TestResolverAbortsOnClientError(t *testing.T) {
	calls := 0
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("second candidate must not be tried after a 4xx")
	}))
	defer second.Close()

	p := NewHTTPFlightProvider([]string{notFound.URL, second.URL}, time.Second)
	if _, err := p.FlightStatus(context.Background(), "NC404", ""); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Errorf("first candidate called %d times, want 1 (no retry on 4xx)", calls)
	}
}

func TestWeatherProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather/current" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"temperature_c":21.5,"precipitation_mm":6.2,"wind_speed_kmh":12,"time":"2026-08-29T10:00:00Z"}`))
	}))
	defer srv.Close()

	p := NewHTTPWeatherProvider([]string{srv.URL}, time.Second)
	reading, err := p.CurrentWeather(context.Background())
	if err != nil {
		t.Fatalf("CurrentWeather: %v", err)
	}
	if reading.PrecipitationMm == nil || *reading.PrecipitationMm != 6.2 {
		t.Errorf("precipitation = %v, want 6.2", reading.PrecipitationMm)
	}
}

func TestMergeProperty(t *testing.T) {
	sig := MergeProperty(
		&PropertyReading{NoiseLevelDb: model.Float64(80), NearbyConstruction: model.Bool(false)},
		&WeatherReading{PrecipitationMm: model.Float64(1), WindSpeedKmh: model.Float64(40)},
	)

	if sig.NoiseLevelDb == nil || *sig.NoiseLevelDb != 80 {
		t.Errorf("noise = %v, want 80", sig.NoiseLevelDb)
	}
	if sig.WindSpeedKmh == nil || *sig.WindSpeedKmh != 40 {
		t.Errorf("wind = %v, want 40", sig.WindSpeedKmh)
	}
	if sig.SafetyIndex != nil {
		t.Error("safety index should stay unreported")
	}
}

func TestMergePropertyNilInputs(t *testing.T) {
	sig := MergeProperty(nil, nil)
	if sig.NoiseLevelDb != nil || sig.PrecipitationMm != nil {
		t.Error("all dimensions should stay nil for nil readings")
	}
}
