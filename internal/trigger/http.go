// Copyright (C) 2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 20

type response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  *bool  `json:"result,omitempty"`
	Loaded  *int   `json:"loaded,omitempty"`
}

// HTTPService runs the pipeline on POST / and POST /run.
type HTTPService struct {
	runner Runner
	port   int
	now    func() time.Time
	tracer trace.Tracer
	mux    *http.ServeMux
}

func NewHTTPService(runner Runner, port int) *HTTPService {
	s := &HTTPService{
		runner: runner,
		port:   port,
		now:    time.Now,
		tracer: otel.Tracer("github.com/cardinalhq/ontime/internal/trigger"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /{$}", s.handleRun)
	s.mux.HandleFunc("POST /run", s.handleRun)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

func (s *HTTPService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves until doneCtx is cancelled, then shuts the server down.
func (s *HTTPService) Run(doneCtx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           otelhttp.NewHandler(s, "ontime.trigger"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP trigger", slog.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("HTTP trigger failed: %w", err)
		}
		return nil
	case <-doneCtx.Done():
	}

	slog.Info("Shutting down HTTP trigger")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *HTTPService) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPService) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "trigger.http")
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			writeJSON(w, http.StatusRequestEntityTooLarge, response{Status: "error", Message: "request body too large"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Message: err.Error()})
		return
	}

	req, err := ParseRequest(body, s.now())
	if err != nil {
		span.RecordError(err)
		slog.Error("Rejected trigger request", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Message: err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("year", req.Year), attribute.IntSlice("months", req.Months))
	slog.Info("Pipeline triggered over HTTP", slog.Int("year", req.Year), slog.Any("months", req.Months))

	res, err := s.runner.Run(ctx, req.Year, req.Months)
	if err != nil {
		span.RecordError(err)
		slog.Error("Pipeline run failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Message: err.Error()})
		return
	}

	ok := res.Success()
	loaded := res.Loaded
	writeJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: successMessage(req),
		Result:  &ok,
		Loaded:  &loaded,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", slog.Any("error", err))
	}
}
