package http

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the report API behind auth and leaves /metrics and
// /healthz open. events may be nil when live streaming is disabled.
func NewRouter(reports *ReportHandlers, authMW *AuthMiddleware, events http.Handler, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/reports").Subrouter()
	api.Use(authMW.Wrap)
	api.HandleFunc("/ignitionon", reports.IgnitionOn).Methods(http.MethodGet)
	api.HandleFunc("/ignitionondiagram", reports.IgnitionOnDiagram).Methods(http.MethodGet)
	api.HandleFunc("/ignitionoff", reports.IgnitionOff).Methods(http.MethodGet)

	if events != nil {
		r.Handle("/ws/events", authMW.Wrap(events)).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return handlers.RecoveryHandler()(h)
}
