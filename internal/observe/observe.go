// Package observe ingests historical flight observation tables. Input is a
// delimited text table with a header row; blank cells map to nil fields so the
// aggregator can treat them as not-breach-classifiable instead of erroring.
package observe

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northcover/parametric-cli/internal/model"
)

// Options configures the observation table parser.
type Options struct {
	Delimiter rune // default ','; historical exports also use '|'
}

// column keys recognized in the header row, matched case-insensitively.
const (
	colRoute         = "route"
	colFlightID      = "flight_id"
	colStatus        = "status"
	colDelayMinutes  = "delay_minutes"
	colTier          = "payout_tier"
	colPayoutPercent = "payout_percent"
	colBreach        = "breach"
)

// Parse reads an observation table and returns its rows. Column order is
// taken from the header; unrecognized columns are ignored. Rows with a blank
// route are skipped with a warning since they cannot be grouped.
func Parse(ctx context.Context, r io.Reader, opts Options) ([]model.RouteObservation, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1 // tolerate ragged rows, missing cells read as blank
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("observe: empty input, expected a header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "observe: read header")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols[colRoute]; !ok {
		return nil, eris.Errorf("observe: header %v missing required %q column", header, colRoute)
	}

	var (
		observations []model.RouteObservation
		skipped      int
	)
	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "observe: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "observe: read line %d", line)
		}

		obs, err := parseRow(record, cols)
		if err != nil {
			return nil, eris.Wrapf(err, "observe: line %d", line)
		}
		if obs.Route == "" {
			skipped++
			zap.L().Warn("observe: skipping row without route", zap.Int("line", line))
			continue
		}
		observations = append(observations, obs)
	}

	zap.L().Info("observe: parsed observation table",
		zap.Int("rows", len(observations)),
		zap.Int("skipped", skipped),
	)
	return observations, nil
}

func parseRow(record []string, cols map[string]int) (model.RouteObservation, error) {
	obs := model.RouteObservation{
		Route:    cell(record, cols, colRoute),
		FlightID: cell(record, cols, colFlightID),
		Status:   parseStatus(cell(record, cols, colStatus)),
	}

	var err error
	if obs.DelayMinutes, err = optInt(cell(record, cols, colDelayMinutes)); err != nil {
		return obs, eris.Wrapf(err, "column %s", colDelayMinutes)
	}
	if obs.Tier, err = optInt(cell(record, cols, colTier)); err != nil {
		return obs, eris.Wrapf(err, "column %s", colTier)
	}
	if obs.PayoutPercent, err = optInt(cell(record, cols, colPayoutPercent)); err != nil {
		return obs, eris.Wrapf(err, "column %s", colPayoutPercent)
	}
	if obs.Breach, err = optBool(cell(record, cols, colBreach)); err != nil {
		return obs, eris.Wrapf(err, "column %s", colBreach)
	}
	return obs, nil
}

// cell returns the trimmed value at the named column, or "" when the column
// is absent or the row is too short.
func cell(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func parseStatus(raw string) model.FlightStatus {
	switch strings.ToUpper(raw) {
	case string(model.FlightOnTime):
		return model.FlightOnTime
	case string(model.FlightDelayed):
		return model.FlightDelayed
	case string(model.FlightCancelled):
		return model.FlightCancelled
	default:
		return model.FlightUnknown
	}
}

func optInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, eris.Errorf("not an integer: %q", raw)
	}
	return &v, nil
}

func optBool(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return nil, eris.Errorf("not a boolean: %q", raw)
	}
	return &v, nil
}
