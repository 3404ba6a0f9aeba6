package handlers

import (
	"net/http"
	"time"
)

// Root answers the users service index route.
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Service is running"))
}

// UsersHealth reports liveness and seconds since started.
func UsersHealth(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, UsersHealthResponse{
			Status: "ok",
			Uptime: time.Since(started).Seconds(),
		})
	}
}

// DataHealth reports liveness of the data service.
func DataHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DataHealthResponse{
		Status:  "Healthy",
		Message: "The server is running correctly.",
	})
}

// NotFound answers unknown routes in the given error style.
func NotFound(style ErrorStyle) http.HandlerFunc {
	rs := responder{style: style}
	return func(w http.ResponseWriter, r *http.Request) {
		rs.write(w, http.StatusNotFound, msgResourceNotFound)
	}
}

type UsersHealthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

type DataHealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
