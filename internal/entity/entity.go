package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldRole is the semantic purpose of a compose-form element,
// independent of the concrete markup a service renders it with.
type FieldRole string

const (
	RoleRecipient  FieldRole = "recipient"
	RoleSubject    FieldRole = "subject"
	RoleBody       FieldRole = "body"
	RoleSendButton FieldRole = "send_button"
)

// FillOrder is the fixed order in which fields are filled. Positional
// heuristics depend on it, so it is never reordered per provider.
func FillOrder() []FieldRole {
	return []FieldRole{RoleRecipient, RoleSubject, RoleBody}
}

// Instruction is the structured result of upstream instruction parsing.
// Immutable once produced.
type Instruction struct {
	Recipient string
	Subject   string
	Body      string
}

func (i Instruction) ValueFor(role FieldRole) string {
	switch role {
	case RoleRecipient:
		return i.Recipient
	case RoleSubject:
		return i.Subject
	case RoleBody:
		return i.Body
	default:
		return ""
	}
}

type Strategy string

const (
	StrategySelector   Strategy = "provider_selector"
	StrategySemantic   Strategy = "semantic_attributes"
	StrategyHeuristic  Strategy = "heuristic_scan"
	StrategyPositional Strategy = "positional_fallback"
)

// StrategyOrder is the fixed cascade priority. Locators must try
// strategies in exactly this order and stop at the first hit.
func StrategyOrder() []Strategy {
	return []Strategy{StrategySelector, StrategySemantic, StrategyHeuristic, StrategyPositional}
}

type Capability string

const (
	CapabilityComposeEmail Capability = "compose_email"
)

// ProviderDescriptor is the static configuration identifying one web
// email service. Loaded at startup, read-only afterwards.
type ProviderDescriptor struct {
	ID               string
	DisplayName      string
	ComposeURL       string
	BaseURLPattern   string
	ComposeSelectors []string
	Selectors        map[FieldRole][]string
	LoginMarkers     []string
	Capabilities     []Capability
}

func (d *ProviderDescriptor) Supports(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}

	return false
}

func (d *ProviderDescriptor) MatchesURL(target string) bool {
	if d.BaseURLPattern == "" {
		return false
	}

	host := normalizeURL(target)
	if !strings.HasPrefix(host, d.BaseURLPattern) {
		return false
	}

	// The pattern must cover a whole host, not a host prefix:
	// mail.google.com.evil.example is not Gmail.
	rest := host[len(d.BaseURLPattern):]

	return rest == "" || rest[0] == '/' || rest[0] == ':' || rest[0] == '?' || rest[0] == '#'
}

func normalizeURL(raw string) string {
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimPrefix(raw, "http://")

	return strings.TrimPrefix(raw, "www.")
}

// Element is a driver-level descriptor of one DOM node, carrying every
// attribute the locator strategies score on.
type Element struct {
	Tag         string
	Selector    string
	Text        string
	AriaLabel   string
	Placeholder string
	LabelText   string
	Name        string
	Role        string
	Type        string
	Editable    bool
	Clickable   bool
	Visible     bool
	DocOrder    int
	BoundingBox BoundingBox
}

type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// LocateAttempt records one try of one strategy for one role. Appended
// to the task's ordered attempt sequence regardless of outcome.
type LocateAttempt struct {
	Role      FieldRole
	Strategy  Strategy
	Candidate string
	Succeeded bool
	Elapsed   time.Duration
}

// LocateResult is the discriminated outcome of one cascade run. Found
// is true when Element is set; Attempts always holds every strategy
// tried, in order.
type LocateResult struct {
	Element  *Element
	Strategy Strategy
	Attempts []LocateAttempt
}

func (r LocateResult) Found() bool {
	return r.Element != nil
}

type OutcomeStatus string

const (
	OutcomeCompletedReal OutcomeStatus = "completed_real"
	OutcomeCompletedMock OutcomeStatus = "completed_mock"
	OutcomeFailed        OutcomeStatus = "failed"
)

// ExecutionOutcome is the terminal value of one provider execution.
// Every task ends in exactly one of the three statuses.
type ExecutionOutcome struct {
	Status      OutcomeStatus
	FailureCode string
	Error       string
	Attempts    []LocateAttempt
}

type ProviderResult struct {
	Provider string
	Outcome  ExecutionOutcome
	Steps    []string
	Elapsed  time.Duration
}

// TaskReport aggregates one instruction's per-provider outcomes for the
// CLI, console, and REST layers.
type TaskReport struct {
	ID          uuid.UUID
	Instruction Instruction
	StartedAt   time.Time
	FinishedAt  time.Time
	Results     []ProviderResult
}

func (t *TaskReport) Succeeded() bool {
	if len(t.Results) == 0 {
		return false
	}

	for _, res := range t.Results {
		if res.Outcome.Status == OutcomeFailed {
			return false
		}
	}

	return true
}
