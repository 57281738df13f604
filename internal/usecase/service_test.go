package usecase_test

import (
	"context"
	"testing"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/internal/parser"
	"mailagent/internal/ports"
	"mailagent/internal/registry"
	"mailagent/internal/usecase"
	"mailagent/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubFactory hands out providers that return a canned outcome and
// record which descriptors were asked for.
type stubFactory struct {
	outcomes map[string]entity.ExecutionOutcome
	asked    []string
}

func (f *stubFactory) Provider(descriptor *entity.ProviderDescriptor, rec ports.StepRecorder) ports.Provider {
	f.asked = append(f.asked, descriptor.ID)

	return &stubProvider{id: descriptor.ID, outcome: f.outcomes[descriptor.ID], rec: rec}
}

type stubProvider struct {
	id      string
	outcome entity.ExecutionOutcome
	rec     ports.StepRecorder
}

func (p *stubProvider) ID() string { return p.id }

func (p *stubProvider) ComposeEmail(context.Context, entity.Instruction) entity.ExecutionOutcome {
	p.rec.Step("Starting %s automation...", p.id)

	return p.outcome
}

var _ ports.ProviderFactory = (*stubFactory)(nil)

func newService(factory *stubFactory) *usecase.AgentService {
	logger := zap.NewNop()

	return usecase.NewAgentService(usecase.Params{
		Config:   &config.Config{},
		Logger:   logger,
		Registry: registry.NewRegistry(),
		Parser:   parser.NewParser(parser.Params{Logger: logger}),
		Factory:  factory,
	})
}

func TestExecuteFansOutToAllProviders(t *testing.T) {
	factory := &stubFactory{
		outcomes: map[string]entity.ExecutionOutcome{
			"gmail":   {Status: entity.OutcomeCompletedReal},
			"outlook": {Status: entity.OutcomeCompletedMock, FailureCode: apperr.CodeFieldNotFound},
		},
	}

	report, err := newService(factory).Execute(context.Background(),
		`send an email to ops@example.com saying "deploy done"`, "both")

	require.NoError(t, err)
	require.NotNil(t, report)
	assert.NotEqual(t, report.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, "ops@example.com", report.Instruction.Recipient)

	require.Len(t, report.Results, 2)
	assert.ElementsMatch(t, []string{"gmail", "outlook"}, factory.asked)

	byProvider := map[string]entity.ProviderResult{}
	for _, res := range report.Results {
		byProvider[res.Provider] = res
	}

	assert.Equal(t, entity.OutcomeCompletedReal, byProvider["gmail"].Outcome.Status)
	assert.Equal(t, entity.OutcomeCompletedMock, byProvider["outlook"].Outcome.Status)
	assert.NotEmpty(t, byProvider["gmail"].Steps)
	assert.True(t, report.Succeeded())
}

func TestExecuteSingleProviderChoice(t *testing.T) {
	factory := &stubFactory{
		outcomes: map[string]entity.ExecutionOutcome{
			"gmail": {Status: entity.OutcomeCompletedReal},
		},
	}

	report, err := newService(factory).Execute(context.Background(),
		"email ops@example.com about the migration", "gmail")

	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "gmail", report.Results[0].Provider)
	assert.Equal(t, []string{"gmail"}, factory.asked)
}

func TestExecuteEmptyChoiceMeansAll(t *testing.T) {
	factory := &stubFactory{outcomes: map[string]entity.ExecutionOutcome{}}

	report, err := newService(factory).Execute(context.Background(),
		"email ops@example.com about the migration", "")

	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
}

func TestExecuteRejectsUnparsableInstruction(t *testing.T) {
	factory := &stubFactory{}

	_, err := newService(factory).Execute(context.Background(), "no address here", "gmail")

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))
	assert.Empty(t, factory.asked, "no provider work before parsing succeeds")
}

func TestExecuteRejectsUnknownProvider(t *testing.T) {
	factory := &stubFactory{}

	_, err := newService(factory).Execute(context.Background(),
		"email ops@example.com about the migration", "yahoo")

	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotSupported))
}
