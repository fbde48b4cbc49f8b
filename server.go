package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRouter(sensor *NearestScooterSensor, hub *wsHub, log Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/reading", handleReading(sensor, log)).Methods(http.MethodGet)
	r.HandleFunc("/api/nearest.pb", handleNearestFeed(sensor, log)).Methods(http.MethodGet)
	r.HandleFunc("/data.json", hub.handleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	recovered := handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{log}))(r)
	return withLogging(recovered, log)
}

func handleReading(sensor *NearestScooterSensor, log Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sensor.Reading()); err != nil {
			log.Error(err, "failed to write reading")
		}
	}
}

func withLogging(h http.Handler, log Logger) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, h, func(_ io.Writer, p handlers.LogFormatterParams) {
		log.Debug("request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"elapsed", time.Since(p.TimeStamp))
	})
}

// recoveryLogger routes panics caught by the recovery handler to the Logger.
type recoveryLogger struct {
	log Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error(nil, "panic serving request", "panic", fmt.Sprint(v...))
}
