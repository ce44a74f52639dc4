package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TaskRouter serves the task observability endpoints.
func TaskRouter(registry *Registry) chi.Router {
	router := chi.NewRouter()

	router.Get("/", listTasks(registry))
	router.Get("/{task_id}", getTask(registry))
	router.Get("/{task_id}/channels", getTaskChannels(registry))

	return router
}

func listTasks(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendResponse(w, true, registry.List(), "")
	}
}

func getTask(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, ok := registry.Get(chi.URLParam(r, "task_id"))
		if !ok {
			SendResponseWithStatus(w, false, nil, "task not found", http.StatusNotFound)
			return
		}
		SendResponse(w, true, task.Status(), "")
	}
}

func getTaskChannels(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, ok := registry.Get(chi.URLParam(r, "task_id"))
		if !ok {
			SendResponseWithStatus(w, false, nil, "task not found", http.StatusNotFound)
			return
		}
		SendResponse(w, true, task.Status().Channels, "")
	}
}
