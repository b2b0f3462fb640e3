package classifier

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Thresholds holds the policy cutoffs the classifier evaluates against.
// They are policy data, not code: products load them from configuration and
// may differ per deployment.
type Thresholds struct {
	// NoiseDbMax breaches when noise_level_db is strictly above it.
	NoiseDbMax float64 `yaml:"noise_db_max" mapstructure:"noise_db_max"`
	// SafetyIndexMin breaches when safety_index is strictly below it.
	SafetyIndexMin float64 `yaml:"safety_index_min" mapstructure:"safety_index_min"`
	// PrecipitationMmMax breaches at or above this value.
	PrecipitationMmMax float64 `yaml:"precipitation_mm_max" mapstructure:"precipitation_mm_max"`
	// WindSpeedKmhMax breaches at or above this value.
	WindSpeedKmhMax float64 `yaml:"wind_speed_kmh_max" mapstructure:"wind_speed_kmh_max"`
	// DelayMinutes is the primary flight-delay threshold (tier 1). Tier 2
	// triggers at twice this value.
	DelayMinutes int `yaml:"delay_minutes" mapstructure:"delay_minutes"`
}

// DefaultThresholds returns the standard product cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoiseDbMax:         70,
		SafetyIndexMin:     5.0,
		PrecipitationMmMax: 5,
		WindSpeedKmhMax:    30,
		DelayMinutes:       45,
	}
}

// Tier2Minutes is the tier-2 (full payout) delay cutoff.
func (th Thresholds) Tier2Minutes() int {
	return 2 * th.DelayMinutes
}

// LoadThresholds reads a YAML threshold file. Fields absent from the file
// keep their defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return th, eris.Wrapf(err, "classifier: read thresholds %s", path)
	}
	if err := yaml.Unmarshal(data, &th); err != nil {
		return th, eris.Wrapf(err, "classifier: parse thresholds %s", path)
	}

	if th.DelayMinutes <= 0 {
		return th, eris.Errorf("classifier: delay_minutes must be positive, got %d", th.DelayMinutes)
	}
	return th, nil
}
