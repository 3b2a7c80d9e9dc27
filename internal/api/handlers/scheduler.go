package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/energia/backend/internal/scheduler"
)

// JobRunner exposes scheduler state (*scheduler.Scheduler)
type JobRunner interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(name string) error
}

// SchedulerHandler reports and triggers scheduled jobs
type SchedulerHandler struct {
	jobs JobRunner
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(jobs JobRunner) *SchedulerHandler {
	return &SchedulerHandler{jobs: jobs}
}

// Jobs returns the statistics of every registered job
// GET /api/scheduler/jobs
func (h *SchedulerHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jobs.GetJobStats())
}

// Run triggers a job asynchronously
// POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := h.jobs.GetJobStats()[name]; !ok {
		respondError(w, http.StatusNotFound, "Unknown job")
		return
	}
	if err := h.jobs.RunJob(name); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}
