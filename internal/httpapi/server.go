package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"mailagent/internal/config"
	"mailagent/internal/ports"
	"mailagent/pkg/apperr"
	"mailagent/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serverName = "HTTPServer"

// Server exposes the agent over HTTP: one compose endpoint plus
// health and usage info. Transport only; all behavior lives in the
// agent service.
type Server struct {
	config *config.Config
	logger *zap.Logger
	agent  ports.AgentService
	http   *http.Server
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Agent  ports.AgentService
}

func NewServer(params Params) *Server {
	s := &Server{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, serverName)),
		agent:  params.Agent,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send-email", s.handleSendEmail)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	s.http = &http.Server{
		Addr:         params.Config.APIConfig.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: params.Config.APIConfig.RequestTimeout,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type sendEmailRequest struct {
	Instruction    string `json:"instruction"`
	Provider       string `json:"provider"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type providerResult struct {
	Provider string   `json:"provider"`
	Status   string   `json:"status"`
	Error    string   `json:"error,omitempty"`
	Steps    []string `json:"steps"`
	Elapsed  float64  `json:"elapsed_seconds"`
}

type sendEmailResponse struct {
	Success       bool             `json:"success"`
	TaskID        string           `json:"task_id"`
	Message       string           `json:"message"`
	Results       []providerResult `json:"results"`
	ExecutionTime float64          `json:"execution_time"`
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	if req.Instruction == "" {
		s.writeError(w, http.StatusBadRequest, "instruction is required")

		return
	}

	ctx := r.Context()

	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	report, err := s.agent.Execute(ctx, req.Instruction, req.Provider)
	if err != nil {
		status := http.StatusInternalServerError

		switch apperr.CodeOf(err) {
		case apperr.CodeInvalidArgument:
			status = http.StatusBadRequest
		case apperr.CodeNotSupported:
			status = http.StatusUnprocessableEntity
		case apperr.CodeTimeout:
			status = http.StatusRequestTimeout
		}

		s.logger.Warn("Execute failed", zap.Error(err))
		s.writeError(w, status, err.Error())

		return
	}

	results := make([]providerResult, 0, len(report.Results))
	for _, res := range report.Results {
		results = append(results, providerResult{
			Provider: res.Provider,
			Status:   string(res.Outcome.Status),
			Error:    res.Outcome.Error,
			Steps:    res.Steps,
			Elapsed:  res.Elapsed.Seconds(),
		})
	}

	message := "Email automation completed successfully"
	if !report.Succeeded() {
		message = "Email automation failed"
	}

	s.writeJSON(w, http.StatusOK, sendEmailResponse{
		Success:       report.Succeeded(),
		TaskID:        report.ID.String(),
		Message:       message,
		Results:       results,
		ExecutionTime: time.Since(started).Seconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "email-automation-agent",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cross-platform email agent API",
		"usage": map[string]any{
			"endpoint": "/send-email",
			"method":   "POST",
			"example": sendEmailRequest{
				Instruction: "send email to joe@example.com saying 'Hello from my automation system'",
				Provider:    "both",
			},
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("Response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
