package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAgent struct {
	report *entity.TaskReport
	err    error

	gotInstruction string
	gotProvider    string
}

func (a *stubAgent) Execute(_ context.Context, instruction, providerChoice string) (*entity.TaskReport, error) {
	a.gotInstruction = instruction
	a.gotProvider = providerChoice

	return a.report, a.err
}

func newTestServer(agent *stubAgent) *Server {
	return NewServer(Params{
		Config: &config.Config{
			APIConfig: &config.APIConfig{ListenAddr: ":0", RequestTimeout: time.Minute},
		},
		Logger: zap.NewNop(),
		Agent:  agent,
	})
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()

	s.http.Handler.ServeHTTP(rr, req)

	return rr
}

func TestSendEmailSuccess(t *testing.T) {
	agent := &stubAgent{
		report: &entity.TaskReport{
			ID: uuid.New(),
			Results: []entity.ProviderResult{
				{
					Provider: "gmail",
					Outcome:  entity.ExecutionOutcome{Status: entity.OutcomeCompletedReal},
					Steps:    []string{"Navigating to https://mail.google.com"},
					Elapsed:  2 * time.Second,
				},
			},
		},
	}

	rr := doRequest(newTestServer(agent), http.MethodPost, "/send-email",
		`{"instruction":"email ops@example.com about the migration","provider":"gmail"}`)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp sendEmailResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.True(t, resp.Success)
	assert.Equal(t, agent.report.ID.String(), resp.TaskID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "gmail", resp.Results[0].Provider)
	assert.Equal(t, "completed_real", resp.Results[0].Status)
	assert.NotEmpty(t, resp.Results[0].Steps)

	assert.Equal(t, "gmail", agent.gotProvider)
}

func TestSendEmailFailedOutcomeStillOK(t *testing.T) {
	agent := &stubAgent{
		report: &entity.TaskReport{
			ID: uuid.New(),
			Results: []entity.ProviderResult{
				{
					Provider: "gmail",
					Outcome: entity.ExecutionOutcome{
						Status:      entity.OutcomeFailed,
						FailureCode: apperr.CodeAuthRequired,
						Error:       "login marker visible",
					},
				},
			},
		},
	}

	rr := doRequest(newTestServer(agent), http.MethodPost, "/send-email",
		`{"instruction":"email ops@example.com about the migration"}`)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp sendEmailResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	assert.False(t, resp.Success)
	assert.Equal(t, "failed", resp.Results[0].Status)
	assert.Equal(t, "login marker visible", resp.Results[0].Error)
}

func TestSendEmailBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"instruction":`},
		{"missing instruction", `{"provider":"gmail"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(newTestServer(&stubAgent{}), http.MethodPost, "/send-email", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestSendEmailErrorStatusMapping(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{apperr.CodeInvalidArgument, http.StatusBadRequest},
		{apperr.CodeNotSupported, http.StatusUnprocessableEntity},
		{apperr.CodeTimeout, http.StatusRequestTimeout},
		{apperr.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			agent := &stubAgent{err: apperr.WrapErrorWithReason("Execute", tt.code, "boom")}

			rr := doRequest(newTestServer(agent), http.MethodPost, "/send-email",
				`{"instruction":"email ops@example.com about the migration"}`)

			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	rr := doRequest(newTestServer(&stubAgent{}), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "healthy")
}

func TestRootUsage(t *testing.T) {
	rr := doRequest(newTestServer(&stubAgent{}), http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/send-email")
}
