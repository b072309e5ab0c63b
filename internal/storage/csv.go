package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/san-kum/pamjoint/internal/cycle"
)

var csvHeader = []string{
	"cycle", "time_s", "raw", "filtered", "angle", "target",
	"pressure_a", "pressure_b", "setpoint_a", "setpoint_b", "delta",
	"duty_a", "duty_b", "written", "skipped", "failed", "faulted",
	"latency_us", "overrun",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteCSV writes reports with times relative to start.
func WriteCSV(w io.Writer, start time.Time, reports []cycle.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range reports {
		row := []string{
			strconv.FormatUint(r.Cycle, 10),
			formatFloat(r.Time.Sub(start).Seconds()),
			strconv.FormatUint(uint64(r.RawAngle), 10),
			formatFloat(r.Filtered),
			formatFloat(r.Angle),
			formatFloat(r.Target),
			formatFloat(r.PressureA),
			formatFloat(r.PressureB),
			formatFloat(r.SetpointA),
			formatFloat(r.SetpointB),
			formatFloat(r.Delta),
			strconv.FormatUint(uint64(r.DutyA), 10),
			strconv.FormatUint(uint64(r.DutyB), 10),
			strconv.FormatBool(r.Written),
			strconv.FormatBool(r.Skipped),
			r.Failed.String(),
			r.Faulted.String(),
			strconv.FormatInt(r.Latency.Microseconds(), 10),
			strconv.FormatBool(r.Overrun),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV.
func ReadCSV(rd io.Reader, start time.Time) ([]cycle.Report, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []cycle.Report{}, nil
	}

	reports := make([]cycle.Report, 0, len(records)-1)
	for i, rec := range records[1:] {
		r, err := parseRow(rec, start)
		if err != nil {
			return nil, fmt.Errorf("storage: row %d: %w", i+2, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// rowParser accumulates the first error while parsing a record.
type rowParser struct {
	rec []string
	err error
}

func (p *rowParser) float(i int) float64 {
	v, err := strconv.ParseFloat(p.rec[i], 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", csvHeader[i], err)
	}
	return v
}

func (p *rowParser) uint(i int, bits int) uint64 {
	v, err := strconv.ParseUint(p.rec[i], 10, bits)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", csvHeader[i], err)
	}
	return v
}

func (p *rowParser) bool(i int) bool {
	v, err := strconv.ParseBool(p.rec[i])
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", csvHeader[i], err)
	}
	return v
}

func (p *rowParser) sensors(i int) cycle.SensorSet {
	v, err := cycle.ParseSensorSet(p.rec[i])
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func parseRow(rec []string, start time.Time) (cycle.Report, error) {
	p := &rowParser{rec: rec}
	offset := p.float(1)
	r := cycle.Report{
		Cycle:     p.uint(0, 64),
		Time:      start.Add(time.Duration(offset * float64(time.Second)).Round(time.Microsecond)),
		RawAngle:  uint16(p.uint(2, 16)),
		Filtered:  p.float(3),
		Angle:     p.float(4),
		Target:    p.float(5),
		PressureA: p.float(6),
		PressureB: p.float(7),
		SetpointA: p.float(8),
		SetpointB: p.float(9),
		Delta:     p.float(10),
		DutyA:     uint32(p.uint(11, 32)),
		DutyB:     uint32(p.uint(12, 32)),
		Written:   p.bool(13),
		Skipped:   p.bool(14),
		Failed:    p.sensors(15),
		Faulted:   p.sensors(16),
		Latency:   time.Duration(p.uint(17, 63)) * time.Microsecond,
		Overrun:   p.bool(18),
	}
	return r, p.err
}
