package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/FlexMeasures/flexmeasures-sub003/core/events"
	"github.com/FlexMeasures/flexmeasures-sub003/core/model"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
	"github.com/FlexMeasures/flexmeasures-sub003/core/timeseries"
)

// sensorDataRequest is the ingestion payload. Values cover consecutive
// events starting at Start; ResolutionS defaults to the sensor's event
// resolution.
type sensorDataRequest struct {
	Start       time.Time `json:"start"`
	ResolutionS int       `json:"resolution_s"`
	Values      []float64 `json:"values"`
	SourceID    string    `json:"source_id"`
	Unit        string    `json:"unit"`
	// BeliefTime defaults to the server clock. Backfilling forecasts with
	// their original belief time keeps provenance honest.
	BeliefTime time.Time `json:"belief_time"`
}

// sensorDataResponse is the query payload: a dense series plus a mask of
// which events had a belief.
type sensorDataResponse struct {
	SensorID    string    `json:"sensor_id"`
	Start       time.Time `json:"start"`
	ResolutionS int       `json:"resolution_s"`
	Values      []float64 `json:"values"`
	Known       []bool    `json:"known"`
}

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.store.ListSensors(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sensors)
}

func (s *Server) handlePostSensorData(w http.ResponseWriter, r *http.Request) {
	sensor, ok := s.lookupSensor(w, r)
	if !ok {
		return
	}
	var req sensorDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Start.IsZero() || len(req.Values) == 0 {
		http.Error(w, "start and values are required", http.StatusBadRequest)
		return
	}
	if req.SourceID == "" {
		http.Error(w, "source_id is required", http.StatusBadRequest)
		return
	}
	if req.Unit != "" && req.Unit != sensor.Unit {
		http.Error(w, fmt.Sprintf("unit %s does not match sensor unit %s", req.Unit, sensor.Unit), http.StatusBadRequest)
		return
	}

	series := timeseries.Series{
		Start:      req.Start,
		Resolution: sensor.EventResolution,
		Values:     req.Values,
	}
	if req.ResolutionS > 0 {
		series.Resolution = time.Duration(req.ResolutionS) * time.Second
		if series.Resolution != sensor.EventResolution {
			resampled, err := series.Resample(sensor.EventResolution)
			if err != nil {
				http.Error(w, fmt.Sprintf("resolution %ds: %v", req.ResolutionS, err), http.StatusBadRequest)
				return
			}
			series = resampled
		}
	}

	beliefTime := req.BeliefTime
	if beliefTime.IsZero() {
		beliefTime = time.Now()
	}
	beliefs := make([]model.Belief, 0, series.Len())
	for i, v := range series.Values {
		beliefs = append(beliefs, model.Belief{
			SensorID:   sensor.ID,
			EventStart: series.TimeAt(i),
			BeliefTime: beliefTime,
			SourceID:   req.SourceID,
			Value:      v,
		})
	}
	if err := s.store.AddBeliefs(r.Context(), beliefs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.bus != nil {
		s.bus.Publish(events.BeliefsAddedEvent{
			SensorID: sensor.ID,
			SourceID: req.SourceID,
			Count:    len(beliefs),
			Time:     time.Now(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": len(beliefs)})
}

func (s *Server) handleGetSensorData(w http.ResponseWriter, r *http.Request) {
	sensor, ok := s.lookupSensor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		http.Error(w, "start must be RFC3339", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		http.Error(w, "end must be RFC3339", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end must be after start", http.StatusBadRequest)
		return
	}

	sel := timeseries.Selection{}
	params := store.SearchParams{
		SensorID:       sensor.ID,
		EventStart:     start,
		EventEnd:       end,
		MostRecentOnly: true,
	}
	if bb := q.Get("beliefs_before"); bb != "" {
		cutoff, err := time.Parse(time.RFC3339, bb)
		if err != nil {
			http.Error(w, "beliefs_before must be RFC3339", http.StatusBadRequest)
			return
		}
		sel.BeliefsBefore = cutoff
		params.BeliefsBefore = cutoff
	}
	if src := q.Get("source"); src != "" {
		params.SourceIDs = []string{src}
	}

	beliefs, err := s.store.Search(r.Context(), params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	set := timeseries.BeliefSet{SensorID: sensor.ID, Resolution: sensor.EventResolution}
	set.Add(beliefs...)
	series, known := set.Dense(start, end, sel)

	if res := q.Get("resolution"); res != "" {
		target, err := time.ParseDuration(res)
		if err != nil {
			http.Error(w, "resolution must be a duration like 15m", http.StatusBadRequest)
			return
		}
		resampled, err := series.Resample(target)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		series = resampled
		known = resampleKnown(known, len(series.Values))
	}

	writeJSON(w, http.StatusOK, sensorDataResponse{
		SensorID:    sensor.ID,
		Start:       series.Start,
		ResolutionS: int(series.Resolution.Seconds()),
		Values:      series.Values,
		Known:       known,
	})
}

// lookupSensor resolves the {id} path segment, writing a 404 on miss.
func (s *Server) lookupSensor(w http.ResponseWriter, r *http.Request) (model.Sensor, bool) {
	id := r.PathValue("id")
	sensor, err := s.store.GetSensor(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, fmt.Sprintf("unknown sensor %s", id), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return model.Sensor{}, false
	}
	return sensor, true
}

// resampleKnown shrinks or grows the known mask to n entries. A resampled
// event is known when any contributing event was known.
func resampleKnown(known []bool, n int) []bool {
	if len(known) == n || n == 0 {
		return known[:n]
	}
	out := make([]bool, n)
	if len(known) > n {
		group := len(known) / n
		for i := 0; i < n; i++ {
			for k := i * group; k < (i+1)*group; k++ {
				if known[k] {
					out[i] = true
					break
				}
			}
		}
		return out
	}
	group := n / len(known)
	for i := range out {
		out[i] = known[i/group]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
