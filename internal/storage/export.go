package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/dynamo"
)

type ExportData struct {
	Run   RunMetadata         `json:"run"`
	Ticks []dynamo.TickRecord `json:"ticks"`
}

func ExportJSON(w io.Writer, meta RunMetadata, ticks []dynamo.TickRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: meta, Ticks: ticks})
}

// ExportCSV writes one row per tick: iteration, time, actuated flag, then
// q<i>, tau<i> and u<i> columns sized from the widest tick.
func ExportCSV(w io.Writer, ticks []dynamo.TickRecord) error {
	cw := csv.NewWriter(w)

	nq, nu := 0, 0
	for _, t := range ticks {
		nq = max(nq, len(t.Encoders), len(t.Torques))
		nu = max(nu, len(t.Commands))
	}

	header := []string{"iteration", "time", "actuated"}
	for i := 0; i < nq; i++ {
		header = append(header, fmt.Sprintf("q%d", i))
	}
	for i := 0; i < nq; i++ {
		header = append(header, fmt.Sprintf("tau%d", i))
	}
	for i := 0; i < nu; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range ticks {
		row := []string{
			strconv.FormatUint(t.Iteration, 10),
			strconv.FormatFloat(t.SimTime, 'f', 6, 64),
			strconv.FormatBool(t.Actuated),
		}
		row = appendPadded(row, t.Encoders, nq)
		row = appendPadded(row, t.Torques, nq)
		row = appendPadded(row, t.Commands, nu)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func appendPadded(row []string, vals []float64, n int) []string {
	for i := 0; i < n; i++ {
		if i < len(vals) {
			row = append(row, strconv.FormatFloat(vals[i], 'f', 6, 64))
		} else {
			row = append(row, "")
		}
	}
	return row
}

// Series extracts the trajectory of encoder j over the recorded ticks.
func Series(ticks []dynamo.TickRecord, j int) ([]float64, error) {
	out := make([]float64, 0, len(ticks))
	for _, t := range ticks {
		if j < 0 || j >= len(t.Encoders) {
			return nil, errors.Errorf("joint %d out of range at iteration %d", j, t.Iteration)
		}
		out = append(out, t.Encoders[j])
	}
	return out, nil
}
