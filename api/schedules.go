package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/FlexMeasures/flexmeasures-sub003/core/jobs"
	"github.com/FlexMeasures/flexmeasures-sub003/core/store"
)

func (s *Server) handleTriggerSchedule(w http.ResponseWriter, r *http.Request) {
	assetID := r.PathValue("id")
	if _, err := s.store.GetAsset(r.Context(), assetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, fmt.Sprintf("unknown asset %s", assetID), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	jobID, err := s.schedules.Trigger(r.Context(), assetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.log != nil {
		s.log.Infof("scheduling job %s triggered for asset %s", jobID, assetID)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobID")
	job, err := s.schedules.Result(jobID)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown job %s", jobID), http.StatusBadRequest)
		return
	}
	switch job.State {
	case jobs.StatePending, jobs.StateRunning:
		writeJSON(w, http.StatusConflict, map[string]string{
			"job_id": job.ID,
			"state":  job.State.String(),
		})
	case jobs.StateFailed:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"job_id": job.ID,
			"state":  job.State.String(),
			"error":  job.Err,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":   job.ID,
			"state":    job.State.String(),
			"schedule": job.Result,
		})
	}
}
