package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealflow-cli/internal/analysis"
	"github.com/sells-group/dealflow-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch := initOrchestrator(st)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(orch),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// analysisRequest is the POST /api/ai-analysis body.
type analysisRequest struct {
	Companies          []model.Company `json:"companies"`
	AnalysisType       string          `json:"analysisType"`
	Instructions       string          `json:"instructions,omitempty"`
	Filters            map[string]any  `json:"filters,omitempty"`
	TemplateID         string          `json:"templateId,omitempty"`
	TemplateName       string          `json:"templateName,omitempty"`
	CustomInstructions string          `json:"customInstructions,omitempty"`
	InitiatedBy        string          `json:"initiatedBy"`
}

type reportRequest struct {
	Orgnr           string `json:"orgnr"`
	ForceRegenerate bool   `json:"forceRegenerate"`
}

func newRouter(orch *analysis.Orchestrator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/ai-analysis", func(w http.ResponseWriter, req *http.Request) {
		var body analysisRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		mode := model.AnalysisMode(body.AnalysisType)
		if mode != model.ModeScreening && mode != model.ModeDeep {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid analysisType %q", body.AnalysisType))
			return
		}

		run, err := orch.Submit(req.Context(), analysis.Request{
			Mode:               mode,
			Companies:          body.Companies,
			Instructions:       body.Instructions,
			Filters:            body.Filters,
			TemplateID:         body.TemplateID,
			TemplateName:       body.TemplateName,
			CustomInstructions: body.CustomInstructions,
			InitiatedBy:        body.InitiatedBy,
		})
		switch {
		case errors.Is(err, analysis.ErrEmptySelection):
			writeError(w, http.StatusBadRequest, "select at least one company")
			return
		case errors.Is(err, analysis.ErrSubmitInFlight):
			writeError(w, http.StatusConflict, "an analysis run is already in flight")
			return
		case err != nil:
			zap.L().Error("analysis submit failed", zap.Error(err))
			status := http.StatusBadGateway
			resp := map[string]any{"success": false, "error": "analysis backend failed"}
			if run != nil {
				resp["run"] = run
			}
			writeJSON(w, status, resp)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"run":      run,
			"analysis": run.Payload,
		})
	})

	r.Get("/api/ai-analysis", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		if runID := q.Get("runId"); runID != "" {
			run, err := orch.Run(req.Context(), runID)
			if err != nil {
				writeError(w, http.StatusNotFound, "run not found")
				return
			}
			// Replay the payload bytes exactly as persisted.
			writeJSON(w, http.StatusOK, map[string]any{
				"success":  true,
				"run":      run,
				"analysis": json.RawMessage(run.RawPayload),
			})
			return
		}

		if q.Get("history") != "" {
			limit, _ := strconv.Atoi(q.Get("limit"))
			history, err := orch.History(req.Context(), limit)
			if err != nil {
				zap.L().Error("history fetch failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to load run history")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"history": history,
			})
			return
		}

		writeError(w, http.StatusBadRequest, "runId or history=1 is required")
	})

	r.Get("/api/ai-report", func(w http.ResponseWriter, req *http.Request) {
		orgnr := req.URL.Query().Get("orgnr")
		if orgnr == "" {
			writeError(w, http.StatusBadRequest, "orgnr is required")
			return
		}
		report, err := orch.GetReport(req.Context(), orgnr)
		if errors.Is(err, analysis.ErrReportNotFound) {
			writeError(w, http.StatusNotFound, "report not generated")
			return
		}
		if err != nil {
			zap.L().Error("report fetch failed", zap.String("orgnr", orgnr), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load report")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})
	})

	r.Post("/api/ai-report", func(w http.ResponseWriter, req *http.Request) {
		var body reportRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Orgnr == "" {
			writeError(w, http.StatusBadRequest, "orgnr is required")
			return
		}

		report, err := orch.GenerateReport(req.Context(), body.Orgnr, body.ForceRegenerate)
		switch {
		case errors.Is(err, analysis.ErrGenerationInFlight):
			writeError(w, http.StatusConflict, "generation already in flight")
			return
		case errors.Is(err, analysis.ErrReportPending):
			writeJSON(w, http.StatusAccepted, map[string]any{"success": false, "error": "report still not ready"})
			return
		case err != nil:
			zap.L().Error("report generation failed", zap.String("orgnr", body.Orgnr), zap.Error(err))
			writeError(w, http.StatusBadGateway, "report generation failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
