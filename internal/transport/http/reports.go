package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fleet-monitor/detector/internal/report"
)

type ReportService interface {
	IgnitionOn(ctx context.Context, deviceID int64, from, to time.Time) (string, error)
	IgnitionOnDaily(ctx context.Context, deviceID int64, from, to time.Time) ([]report.DailyIgnition, error)
	IgnitionOff(ctx context.Context, deviceID int64, from, to time.Time, thresholdMinutes int64) ([]report.OffInterval, error)
}

type ReportHandlers struct {
	reports ReportService
	log     *slog.Logger
}

func NewReportHandlers(reports ReportService, log *slog.Logger) *ReportHandlers {
	return &ReportHandlers{reports: reports, log: log.With("component", "reports_api")}
}

type reportQuery struct {
	deviceID int64
	from, to time.Time
}

func parseReportQuery(r *http.Request) (reportQuery, error) {
	q := r.URL.Query()
	var out reportQuery
	id, err := strconv.ParseInt(q.Get("deviceId"), 10, 64)
	if err != nil || id <= 0 {
		return out, errors.New("deviceId must be a positive integer")
	}
	out.deviceID = id
	if out.from, err = time.Parse(time.RFC3339, q.Get("from")); err != nil {
		return out, errors.New("from must be an RFC 3339 time")
	}
	if out.to, err = time.Parse(time.RFC3339, q.Get("to")); err != nil {
		return out, errors.New("to must be an RFC 3339 time")
	}
	if out.to.Before(out.from) {
		return out, errors.New("to must not be before from")
	}
	if out.to.Sub(out.from) > report.MaxRange {
		return out, errors.New("from and to must be at most 366 days apart")
	}
	return out, nil
}

func (h *ReportHandlers) IgnitionOn(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	total, err := h.reports.IgnitionOn(r.Context(), q.deviceID, q.from, q.to)
	if err != nil {
		h.fail(w, "ignitionon", err)
		return
	}
	writeJSON(w, http.StatusOK, total)
}

func (h *ReportHandlers) IgnitionOnDiagram(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := h.reports.IgnitionOnDaily(r.Context(), q.deviceID, q.from, q.to)
	if err != nil {
		h.fail(w, "ignitionondiagram", err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *ReportHandlers) IgnitionOff(w http.ResponseWriter, r *http.Request) {
	q, err := parseReportQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold, err := strconv.ParseInt(r.URL.Query().Get("threshold"), 10, 64)
	if err != nil || threshold < 0 {
		writeError(w, http.StatusBadRequest, "threshold must be a non-negative number of minutes")
		return
	}
	intervals, err := h.reports.IgnitionOff(r.Context(), q.deviceID, q.from, q.to, threshold)
	if err != nil {
		h.fail(w, "ignitionoff", err)
		return
	}
	writeJSON(w, http.StatusOK, intervals)
}

func (h *ReportHandlers) fail(w http.ResponseWriter, report string, err error) {
	h.log.Error("report failed", "report", report, "err", err)
	writeError(w, http.StatusInternalServerError, "report failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
