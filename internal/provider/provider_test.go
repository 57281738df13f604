package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/internal/executor"
	"mailagent/internal/ports"
	"mailagent/internal/provider"
	"mailagent/internal/steplog"
	"mailagent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubRunner struct {
	result *executor.Result
	err    error
	calls  int
}

func (s *stubRunner) Run(context.Context, *entity.ProviderDescriptor, entity.Instruction, ports.PageDriver, ports.StepRecorder) (*executor.Result, error) {
	s.calls++

	return s.result, s.err
}

type stubSessions struct {
	err      error
	sessions int
	closed   int
}

func (s *stubSessions) Launch(context.Context) error { return nil }

func (s *stubSessions) NewSession(context.Context) (ports.PageDriver, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.sessions++

	return &nullPage{onClose: func() { s.closed++ }}, nil
}

func (s *stubSessions) Close(context.Context) error { return nil }

func (s *stubSessions) IsReady() bool { return true }

type nullPage struct {
	onClose func()
}

func (n *nullPage) Navigate(context.Context, string) error { return nil }

func (n *nullPage) FindVisible(context.Context, string) (*entity.Element, error) { return nil, nil }

func (n *nullPage) QueryCandidates(context.Context, ports.Scan) ([]entity.Element, error) {
	return nil, nil
}

func (n *nullPage) SetValue(context.Context, string, string) error { return nil }

func (n *nullPage) ReadValue(context.Context, string) (string, error) { return "", nil }

func (n *nullPage) Click(context.Context, string) error { return nil }

func (n *nullPage) Close(context.Context) error {
	n.onClose()

	return nil
}

var (
	_ ports.BrowserManager = (*stubSessions)(nil)
	_ ports.PageDriver     = (*nullPage)(nil)
)

func testConfig() *config.Config {
	return &config.Config{
		ExecutorConfig: &config.ExecutorConfig{
			MaxFieldAttempts: 3,
			MaxNavAttempts:   2,
			RetryBackoff:     time.Millisecond,
			TaskTimeout:      5 * time.Second,
			SettleDelay:      0,
		},
	}
}

func gmailDescriptor() *entity.ProviderDescriptor {
	return &entity.ProviderDescriptor{
		ID:           "gmail",
		DisplayName:  "Gmail",
		ComposeURL:   "https://mail.google.com",
		Capabilities: []entity.Capability{entity.CapabilityComposeEmail},
	}
}

func testInstruction() entity.Instruction {
	return entity.Instruction{
		Recipient: "ops@example.com",
		Subject:   "Weekly report",
		Body:      "Numbers attached.",
	}
}

func newProvider(runner *stubRunner, sessions *stubSessions, descriptor *entity.ProviderDescriptor, rec ports.StepRecorder) ports.Provider {
	factory := provider.NewFactory(provider.FactoryParams{
		Config:   testConfig(),
		Logger:   zap.NewNop(),
		Runner:   runner,
		Sessions: sessions,
	})

	return factory.Provider(descriptor, rec)
}

func TestComposeEmailCompletedReal(t *testing.T) {
	runner := &stubRunner{
		result: &executor.Result{
			State: executor.StateDone,
			Attempts: []entity.LocateAttempt{
				{Role: entity.RoleRecipient, Strategy: entity.StrategySelector, Succeeded: true},
			},
		},
	}
	sessions := &stubSessions{}
	rec := steplog.New(zap.NewNop(), "gmail")

	outcome := newProvider(runner, sessions, gmailDescriptor(), rec).
		ComposeEmail(context.Background(), testInstruction())

	assert.Equal(t, entity.OutcomeCompletedReal, outcome.Status)
	assert.Empty(t, outcome.FailureCode)
	assert.Len(t, outcome.Attempts, 1)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 1, sessions.closed, "session must be closed after the run")
}

func TestComposeEmailFieldNotFoundDegradesToMock(t *testing.T) {
	runner := &stubRunner{
		result: &executor.Result{State: executor.StateFailed},
		err: apperr.Wrap("Run", apperr.CodeFieldNotFound,
			errors.New("field recipient not filled"), nil),
	}
	sessions := &stubSessions{}
	rec := steplog.New(zap.NewNop(), "gmail")

	outcome := newProvider(runner, sessions, gmailDescriptor(), rec).
		ComposeEmail(context.Background(), testInstruction())

	assert.Equal(t, entity.OutcomeCompletedMock, outcome.Status)
	assert.Equal(t, apperr.CodeFieldNotFound, outcome.FailureCode)

	steps := rec.Steps()
	assert.Contains(t, steps, "=== Gmail DEMO MODE ===")
	assert.Contains(t, steps, "To: ops@example.com")
	assert.Contains(t, steps, "Subject: Weekly report")
	assert.Equal(t, 1, sessions.closed)
}

func TestComposeEmailVerificationDegradesToMock(t *testing.T) {
	runner := &stubRunner{
		result: &executor.Result{State: executor.StateFailed},
		err: apperr.Wrap("Run", apperr.CodeVerification,
			errors.New("re-read mismatch"), nil),
	}
	rec := steplog.New(zap.NewNop(), "gmail")

	outcome := newProvider(runner, &stubSessions{}, gmailDescriptor(), rec).
		ComposeEmail(context.Background(), testInstruction())

	assert.Equal(t, entity.OutcomeCompletedMock, outcome.Status)
	assert.Equal(t, apperr.CodeVerification, outcome.FailureCode)
}

func TestComposeEmailAuthRequiredFails(t *testing.T) {
	runner := &stubRunner{
		result: &executor.Result{State: executor.StateFailed},
		err: apperr.Wrap("Run", apperr.CodeAuthRequired,
			errors.New("login marker visible"), nil),
	}
	rec := steplog.New(zap.NewNop(), "gmail")

	outcome := newProvider(runner, &stubSessions{}, gmailDescriptor(), rec).
		ComposeEmail(context.Background(), testInstruction())

	assert.Equal(t, entity.OutcomeFailed, outcome.Status)
	assert.Equal(t, apperr.CodeAuthRequired, outcome.FailureCode)
	assert.NotContains(t, rec.Steps(), "=== Gmail DEMO MODE ===")
}

func TestComposeEmailSessionFailure(t *testing.T) {
	runner := &stubRunner{}
	sessions := &stubSessions{err: errors.New("browser not launched")}
	rec := steplog.New(zap.NewNop(), "gmail")

	outcome := newProvider(runner, sessions, gmailDescriptor(), rec).
		ComposeEmail(context.Background(), testInstruction())

	assert.Equal(t, entity.OutcomeFailed, outcome.Status)
	assert.Equal(t, apperr.CodeBrowserNotReady, outcome.FailureCode)
	assert.Zero(t, runner.calls)
}

func TestComposeEmailUnsupportedCapability(t *testing.T) {
	descriptor := gmailDescriptor()
	descriptor.Capabilities = nil

	runner := &stubRunner{}
	sessions := &stubSessions{}
	rec := steplog.New(zap.NewNop(), "gmail")

	outcome := newProvider(runner, sessions, descriptor, rec).
		ComposeEmail(context.Background(), testInstruction())

	assert.Equal(t, entity.OutcomeFailed, outcome.Status)
	assert.Equal(t, apperr.CodeNotSupported, outcome.FailureCode)
	assert.Zero(t, sessions.sessions)
}
