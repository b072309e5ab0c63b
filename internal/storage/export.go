package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/pamjoint/internal/cycle"
)

// ExportData is the JSON form of a run with one column per signal.
type ExportData struct {
	Run       RunMetadata `json:"run"`
	Times     []float64   `json:"times"`
	Angle     []float64   `json:"angle"`
	Target    []float64   `json:"target"`
	PressureA []float64   `json:"pressure_a"`
	PressureB []float64   `json:"pressure_b"`
	SetpointA []float64   `json:"setpoint_a"`
	SetpointB []float64   `json:"setpoint_b"`
	DutyA     []uint32    `json:"duty_a"`
	DutyB     []uint32    `json:"duty_b"`
	Skipped   []uint64    `json:"skipped_cycles"`
}

func NewExportData(meta RunMetadata, reports []cycle.Report) ExportData {
	n := len(reports)
	data := ExportData{
		Run:       meta,
		Times:     make([]float64, n),
		Angle:     make([]float64, n),
		Target:    make([]float64, n),
		PressureA: make([]float64, n),
		PressureB: make([]float64, n),
		SetpointA: make([]float64, n),
		SetpointB: make([]float64, n),
		DutyA:     make([]uint32, n),
		DutyB:     make([]uint32, n),
		Skipped:   []uint64{},
	}
	for i, r := range reports {
		data.Times[i] = r.Time.Sub(meta.Start).Seconds()
		data.Angle[i] = r.Angle
		data.Target[i] = r.Target
		data.PressureA[i] = r.PressureA
		data.PressureB[i] = r.PressureB
		data.SetpointA[i] = r.SetpointA
		data.SetpointB[i] = r.SetpointB
		data.DutyA[i] = r.DutyA
		data.DutyB[i] = r.DutyB
		if r.Skipped {
			data.Skipped = append(data.Skipped, r.Cycle)
		}
	}
	return data
}

func ExportJSON(w io.Writer, meta RunMetadata, reports []cycle.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(meta, reports))
}

func ExportJSONFile(path string, meta RunMetadata, reports []cycle.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, meta, reports)
}

func ExportCSVFile(path string, meta RunMetadata, reports []cycle.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteCSV(file, meta.Start, reports)
}
