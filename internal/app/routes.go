package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/callmark/internal/health"
	"github.com/MrWong99/callmark/internal/observe"
	"github.com/MrWong99/callmark/internal/store"
)

var errNoDictionaries = errors.New("no dictionaries loaded")

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	health.New([]health.Checker{
		{Name: "store", Check: a.jobs.Ping},
		{Name: "dictionaries", Check: func(context.Context) error {
			if len(a.Dictionaries()) == 0 {
				return errNoDictionaries
			}
			return nil
		}},
	}).Register(mux)

	mux.Handle("GET /metrics", a.telemetry.MetricsHandler())
	mux.HandleFunc("GET /v1/jobs", a.listJobs)
	mux.HandleFunc("GET /v1/jobs/{id}", a.getJob)

	return observe.Middleware(a.metrics)(mux)
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *App) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.jobs.Get(r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case err != nil:
		observe.Logger(r.Context()).Error("job lookup failed", "id", r.PathValue("id"), "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	default:
		writeJSON(w, http.StatusOK, job)
	}
}

// listJobs returns job summaries without their entries, optionally filtered
// by ?status=.
func (a *App) listJobs(w http.ResponseWriter, r *http.Request) {
	status := store.Status(r.URL.Query().Get("status"))
	switch status {
	case "", store.StatusNew, store.StatusPending, store.StatusFinished, store.StatusFailed:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status " + string(status)})
		return
	}
	jobs, err := a.jobs.List(status)
	if err != nil {
		observe.Logger(r.Context()).Error("job listing failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	for i := range jobs {
		jobs[i].Entries = nil
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
