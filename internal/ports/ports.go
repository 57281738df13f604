package ports

import (
	"context"

	"mailagent/internal/entity"
)

// Scan selects how wide a candidate query sweeps the document.
type Scan string

const (
	// ScanInteractive covers inputs, textareas, editable regions and
	// buttons - the conventional form surface.
	ScanInteractive Scan = "interactive"
	// ScanAll covers every rendered element, used by the heuristic and
	// positional strategies once structural signals are exhausted.
	ScanAll Scan = "all"
)

// PageDriver is the browser capability surface one task consumes. Each
// task owns exactly one driver session; sender identity is an opaque
// property of that session and never inspected here.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	// FindVisible resolves a selector to a visible, interactable
	// element. Returns (nil, nil) when nothing qualifies.
	FindVisible(ctx context.Context, selector string) (*entity.Element, error)
	QueryCandidates(ctx context.Context, scan Scan) ([]entity.Element, error)
	SetValue(ctx context.Context, selector, value string) error
	ReadValue(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	Close(ctx context.Context) error
}

// BrowserManager owns the browser process and hands out isolated
// per-task sessions.
type BrowserManager interface {
	Launch(ctx context.Context) error
	NewSession(ctx context.Context) (PageDriver, error)
	Close(ctx context.Context) error
	IsReady() bool
}

// ElementLocator runs the detection cascade for one field role.
type ElementLocator interface {
	Locate(ctx context.Context, role entity.FieldRole, descriptor *entity.ProviderDescriptor, page PageDriver) entity.LocateResult
}

// Registry resolves a provider identifier or URL to its descriptor.
type Registry interface {
	Resolve(target string) (*entity.ProviderDescriptor, error)
	Descriptors() []*entity.ProviderDescriptor
}

// Provider composes an email end to end against one service. The
// outcome is always terminal: real, mock, or failed.
type Provider interface {
	ID() string
	ComposeEmail(ctx context.Context, instruction entity.Instruction) entity.ExecutionOutcome
}

// ProviderFactory binds a descriptor and a per-task step recorder into
// a ready-to-run provider.
type ProviderFactory interface {
	Provider(descriptor *entity.ProviderDescriptor, rec StepRecorder) Provider
}

// InstructionParser turns a free-form instruction into a structured
// one. Treated as a black box by the core.
type InstructionParser interface {
	Parse(text string) (entity.Instruction, error)
}

// StepRecorder receives ordered human-readable step records for one
// task. Implementations must be safe for sequential use within a task;
// tasks never share a recorder.
type StepRecorder interface {
	Step(format string, args ...any)
	Steps() []string
}

// AgentService executes one parsed instruction across the selected
// providers and aggregates the report.
type AgentService interface {
	Execute(ctx context.Context, instruction string, providerChoice string) (*entity.TaskReport, error)
}
