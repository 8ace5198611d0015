// Package export serializes schedules and belief data for downstream tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	"github.com/FlexMeasures/flexmeasures-sub003/core/scheduling"
)

// WriteScheduleJSON writes the schedule to w in JSON format.
func WriteScheduleJSON(w io.Writer, sched *scheduling.Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sched)
}

// WriteScheduleCSV writes the schedule to w with one row per slot.
func WriteScheduleCSV(w io.Writer, sched *scheduling.Schedule) error {
	cw := csv.NewWriter(w)
	withSoC := len(sched.SoC) == len(sched.PowerKW)
	header := []string{"slot_start", "power_kw"}
	if withSoC {
		header = append(header, "soc")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, p := range sched.PowerKW {
		rec := []string{
			sched.Start.Add(time.Duration(i) * sched.Resolution).Format(time.RFC3339),
			strconv.FormatFloat(p, 'f', -1, 64),
		}
		if withSoC {
			rec = append(rec, strconv.FormatFloat(sched.SoC[i], 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBeliefsCSV writes beliefs to w with full provenance, one row each.
func WriteBeliefsCSV(w io.Writer, beliefs []model.Belief) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"sensor_id", "event_start", "belief_time", "source_id", "value"}); err != nil {
		return err
	}
	for _, b := range beliefs {
		rec := []string{
			b.SensorID,
			b.EventStart.Format(time.RFC3339),
			b.BeliefTime.Format(time.RFC3339),
			b.SourceID,
			strconv.FormatFloat(b.Value, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
