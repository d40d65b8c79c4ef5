package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/hotspots/internal/analyzer"
	"github.com/getsentry/hotspots/internal/errorutil"
	"github.com/getsentry/hotspots/internal/highlight"
	"github.com/getsentry/hotspots/internal/httputil"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Analyze traces uploaded over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

type (
	environment struct {
		opts analyzer.Options
	}

	traceResponse struct {
		AnalysisID string            `json:"analysis_id"`
		Report     *highlight.Report `json:"report"`
	}

	// noSources keeps uploaded traces from reading files on the server.
	noSources struct{}
)

func (noSources) Open(string) (io.ReadCloser, error) {
	return nil, fs.ErrNotExist
}

func newEnvironment(opts analyzer.Options) *environment {
	opts.Sources = noSources{}
	opts.Manifests = nil
	return &environment{opts: opts}
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, "/health", e.getHealth},
		{http.MethodPost, "/traces", e.postTraces},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.DecompressPayload(route.handler)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env := newEnvironment(analyzerOptions())
	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	server := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sentryhttp.New(sentryhttp.Options{}).Handle(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan struct{})
	go func() {
		<-ctx.Done()

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(shutdown)
	}()

	log.Info().Str("addr", server.Addr).Msg("serving")
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		return err
	}

	<-shutdown
	return nil
}

func (e *environment) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (e *environment) postTraces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	params, logger, ok := httputil.GetNumericQueryParameters(w, r, "skipMillis", "forceMillis", "minPercentage")
	if !ok {
		return
	}
	opts := e.opts
	if v, ok := params["skipMillis"]; ok {
		opts.Skip = time.Duration(v * float64(time.Millisecond))
	}
	if v, ok := params["forceMillis"]; ok {
		opts.Force = time.Duration(v * float64(time.Millisecond))
	}
	if v, ok := params["minPercentage"]; ok {
		if v < 0 || v > 1 {
			http.Error(w, "expected minPercentage within [0, 1]", http.StatusBadRequest)
			return
		}
		opts.MinPercentage = v
	}
	if opts.Skip < 0 || opts.Force < 0 {
		http.Error(w, "expected durations not to be negative", http.StatusBadRequest)
		return
	}

	id := uuid.New().String()
	hub.Scope().SetTag("analysis_id", id)
	logger = logger.With().Str("analysis_id", id).Logger()
	ctx = logger.WithContext(ctx)

	report, err := analyzer.AnalyzeTrace(ctx, r.Body, nil, opts)
	if err != nil {
		logger.Warn().Err(err).Msg("trace can't be analyzed")
		if errors.Is(err, errorutil.ErrMalformedInput) || errors.Is(err, errorutil.ErrDataIntegrity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	s := sentry.StartSpan(ctx, "json.marshal")
	defer s.Finish()

	b, err := json.Marshal(traceResponse{AnalysisID: id, Report: report})
	if err != nil {
		hub.CaptureException(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
