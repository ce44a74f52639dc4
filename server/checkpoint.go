package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tarungka/sluice/checkpoint"
)

// CheckpointRouter serves checkpoint metadata from the store.
func CheckpointRouter(store *checkpoint.Store) chi.Router {
	router := chi.NewRouter()

	router.Get("/latest", latestCheckpoint(store))
	router.Get("/{checkpoint_id}", getCheckpoint(store))

	return router
}

func latestCheckpoint(store *checkpoint.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cp, found, err := store.Latest()
		if err != nil {
			SendResponseWithStatus(w, false, nil, err.Error(), http.StatusInternalServerError)
			return
		}
		if !found {
			SendResponseWithStatus(w, false, nil, "no checkpoints yet", http.StatusNotFound)
			return
		}
		SendResponse(w, true, cp, "")
	}
}

func getCheckpoint(store *checkpoint.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "checkpoint_id"), 10, 64)
		if err != nil {
			SendResponseWithStatus(w, false, nil, "invalid checkpoint id", http.StatusBadRequest)
			return
		}
		cp, err := store.Get(id)
		if err != nil {
			SendResponseWithStatus(w, false, nil, err.Error(), http.StatusNotFound)
			return
		}
		SendResponse(w, true, cp, "")
	}
}
