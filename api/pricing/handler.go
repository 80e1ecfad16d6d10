// Package pricing exposes the charging cost estimator over HTTP: an HTML
// form for people and a small JSON API for programs.
package pricing

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/evbill/core/history"
	"github.com/kilianp07/evbill/core/model"
	"github.com/kilianp07/evbill/core/pipeline"
	"github.com/kilianp07/evbill/core/prediction"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ModelInfo describes the fitted model served by the API.
type ModelInfo interface {
	Info() pipeline.Info
	Report() pipeline.Report
}

type formData struct {
	ChargerTypes []string
	TimesOfDay   []string
	UserTypes    []string
}

type resultData struct {
	Message string
	Cost    float64
	Request model.Request
}

// NewFormHandler renders the input form via GET /.
func NewFormHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		data := formData{ChargerTypes: model.ChargerTypes, TimesOfDay: model.TimesOfDay, UserTypes: model.UserTypes}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ExecuteTemplate(w, "index.html", data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// NewPredictHandler handles form submissions via POST /predict. Failures are
// answered with a plain-text "Error: <err>" body.
func NewPredictHandler(engine prediction.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			textError(w, err, http.StatusBadRequest)
			return
		}
		raw := prediction.RawRequest{
			EnergyKWh:     r.PostForm.Get("energy"),
			DurationHours: r.PostForm.Get("duration"),
			RateKW:        r.PostForm.Get("rate"),
			TemperatureC:  r.PostForm.Get("temperature"),
			ChargerType:   r.PostForm.Get("charger"),
			TimeOfDay:     r.PostForm.Get("time"),
			UserType:      r.PostForm.Get("user"),
		}
		ctx := prediction.WithSource(r.Context(), prediction.SourceWeb)
		req, cost, err := engine.PredictRaw(ctx, raw)
		if err != nil {
			textError(w, err, statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := resultData{Message: prediction.FormatCost(cost), Cost: cost, Request: req}
		if err := templates.ExecuteTemplate(w, "result.html", data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func textError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "Error: %v", err)
}

func statusFor(err error) int {
	if errors.Is(err, prediction.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// PredictResponse is the JSON body returned by POST /api/v1/predict.
type PredictResponse struct {
	CostUSD float64       `json:"cost_usd"`
	Message string        `json:"message"`
	Request model.Request `json:"request"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewAPIPredictHandler returns the JSON prediction endpoint via POST /api/v1/predict.
// The body carries the seven fields as numbers and strings.
func NewAPIPredictHandler(engine prediction.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req model.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Errorf("%w: %w", prediction.ErrInvalidInput, err).Error()})
			return
		}
		ctx := prediction.WithSource(r.Context(), prediction.SourceAPI)
		cost, err := engine.PredictCost(ctx, req)
		if err != nil {
			writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, PredictResponse{CostUSD: cost, Message: prediction.FormatCost(cost), Request: req})
	})
}

// ModelResponse is returned by GET /api/v1/model.
type ModelResponse struct {
	pipeline.Info
	HeldOut pipeline.Report `json:"held_out"`
}

// NewModelHandler describes the fitted model via GET /api/v1/model.
func NewModelHandler(m ModelInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, ModelResponse{Info: m.Info(), HeldOut: m.Report()})
	})
}

// NewHistoryHandler exposes recorded predictions via GET /api/v1/history.
// Supported filters: source, charger_type, start and end (RFC 3339), limit.
func NewHistoryHandler(store history.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		v := r.URL.Query()
		q := history.Query{
			Source:      v.Get("source"),
			ChargerType: v.Get("charger_type"),
			Limit:       100,
		}
		for _, p := range []struct {
			name string
			dst  *time.Time
		}{{"start", &q.Start}, {"end", &q.End}} {
			if s := v.Get(p.name); s != "" {
				t, err := time.Parse(time.RFC3339, s)
				if err != nil {
					writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid %s: %v", p.name, err)})
					return
				}
				*p.dst = t
			}
		}
		if s := v.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
				return
			}
			q.Limit = n
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}
		if records == nil {
			records = []history.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})
}

// NewHealthHandler answers GET /healthz.
func NewHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
}
