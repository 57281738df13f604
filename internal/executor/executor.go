package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailagent/internal/config"
	"mailagent/internal/entity"
	"mailagent/internal/ports"
	"mailagent/pkg/apperr"
	"mailagent/pkg/logg"
	"mailagent/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	executorName   = "ActionExecutor"
	executorTracer = "executor.state_machine"
)

// State is one node of the execution state machine. FAILED is absorbing
// and reachable from every other state.
type State string

const (
	StateInit           State = "INIT"
	StateNavigated      State = "NAVIGATED"
	StateFieldRecipient State = "FIELD_RECIPIENT"
	StateFieldSubject   State = "FIELD_SUBJECT"
	StateFieldBody      State = "FIELD_BODY"
	StateVerified       State = "VERIFIED"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

func fieldState(role entity.FieldRole) State {
	switch role {
	case entity.RoleRecipient:
		return StateFieldRecipient
	case entity.RoleSubject:
		return StateFieldSubject
	case entity.RoleBody:
		return StateFieldBody
	default:
		return StateFailed
	}
}

// Result carries the terminal state and the full ordered attempt
// sequence of one run, for diagnostics and the task report.
type Result struct {
	State    State
	Attempts []entity.LocateAttempt
	// FieldRetries counts locate-and-fill retries per role, exposed
	// for the task report.
	FieldRetries map[entity.FieldRole]int
}

// Executor drives one compose task through navigation, per-field
// locate-and-fill, verification and completion. Steps are strictly
// sequential; all retries are bounded.
type Executor struct {
	config  *config.Config
	logger  *zap.Logger
	tracer  trace.Tracer
	locator ports.ElementLocator
}

type Params struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Locator ports.ElementLocator
}

func NewExecutor(params Params) *Executor {
	return &Executor{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, executorName)),
		tracer:  otel.Tracer(executorTracer),
		locator: params.Locator,
	}
}

// Run executes the full state machine against one page session. A nil
// error means the machine reached DONE; any error carries the apperr
// code the caller maps to a terminal outcome.
func (e *Executor) Run(
	ctx context.Context,
	descriptor *entity.ProviderDescriptor,
	instruction entity.Instruction,
	page ports.PageDriver,
	rec ports.StepRecorder,
) (res *Result, err error) {
	const op = "Run"
	logger := e.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.Provider, descriptor.ID),
	)

	ctx, span := tracing.StartSpan(ctx, e.tracer, logger, op,
		attribute.String("provider", descriptor.ID))
	defer func() {
		span.End(err)
	}()

	res = &Result{
		State:        StateInit,
		FieldRetries: make(map[entity.FieldRole]int),
	}

	if err := e.navigate(ctx, descriptor, page, rec); err != nil {
		res.State = StateFailed

		return res, err
	}

	if err := e.checkAuthWall(ctx, descriptor, page, rec); err != nil {
		res.State = StateFailed

		return res, err
	}

	if err := e.openCompose(ctx, descriptor, page, rec); err != nil {
		res.State = StateFailed

		return res, err
	}

	res.State = StateNavigated
	span.AddEvent("compose surface reached")

	filled := make(map[entity.FieldRole]*entity.Element)

	for _, role := range entity.FillOrder() {
		res.State = fieldState(role)

		value := instruction.ValueFor(role)
		if value == "" && role == entity.RoleBody {
			rec.Step("Body empty - skipping field")

			continue
		}

		element, ferr := e.fillField(ctx, descriptor, role, value, page, rec, res)
		if ferr != nil {
			res.State = StateFailed

			return res, ferr
		}

		filled[role] = element
	}

	if err := e.verifyFields(ctx, instruction, filled, page, rec); err != nil {
		res.State = StateFailed

		return res, err
	}

	res.State = StateVerified
	span.AddEvent("fields verified")

	e.locateSendButton(ctx, descriptor, page, rec, res)

	res.State = StateDone
	rec.Step("Email ready to send (dispatch suppressed by policy)")

	return res, nil
}

func (e *Executor) navigate(ctx context.Context, descriptor *entity.ProviderDescriptor, page ports.PageDriver, rec ports.StepRecorder) error {
	const op = "navigate"

	url := descriptor.ComposeURL
	if url == "" {
		return apperr.Wrap(op, apperr.CodeNotSupported,
			fmt.Errorf("descriptor %s has no compose URL", descriptor.ID),
			map[string]any{apperr.MetaProvider: descriptor.ID})
	}

	rec.Step("Navigating to %s", url)

	var lastErr error

	for attempt := 1; attempt <= e.config.ExecutorConfig.MaxNavAttempts; attempt++ {
		if err := e.waitOrCancelled(ctx, 0); err != nil {
			return err
		}

		lastErr = page.Navigate(ctx, url)
		if lastErr == nil {
			return nil
		}

		e.logger.Warn("Navigation failed",
			zap.Int("attempt", attempt),
			zap.String(logg.URL, url),
			zap.Error(lastErr))

		if err := e.waitOrCancelled(ctx, e.backoff(attempt)); err != nil {
			return err
		}
	}

	return apperr.Wrap(op, apperr.CodeNavigation, lastErr, map[string]any{
		apperr.MetaReason:   "navigation_exhausted",
		apperr.MetaStage:    apperr.StageNavigation,
		apperr.MetaURL:      url,
		apperr.MetaProvider: descriptor.ID,
	})
}

// checkAuthWall probes the descriptor's login markers. A visible marker
// means the compose UI is behind authentication: a non-recoverable
// precondition, not a transient failure, so no retries follow.
func (e *Executor) checkAuthWall(ctx context.Context, descriptor *entity.ProviderDescriptor, page ports.PageDriver, rec ports.StepRecorder) error {
	const op = "checkAuthWall"

	for _, marker := range descriptor.LoginMarkers {
		element, err := page.FindVisible(ctx, marker)
		if err != nil {
			continue
		}

		if element != nil {
			rec.Step("Authentication wall detected (%s)", marker)

			return apperr.Wrap(op, apperr.CodeAuthRequired,
				fmt.Errorf("login marker visible: %s", marker),
				map[string]any{
					apperr.MetaSelector: marker,
					apperr.MetaProvider: descriptor.ID,
				})
		}
	}

	rec.Step("No authentication wall - compose UI reachable")

	return nil
}

// openCompose clicks the provider's compose control when the
// descriptor names one. Services that land directly on a compose
// surface leave the list empty.
func (e *Executor) openCompose(ctx context.Context, descriptor *entity.ProviderDescriptor, page ports.PageDriver, rec ports.StepRecorder) error {
	const op = "openCompose"

	if len(descriptor.ComposeSelectors) == 0 {
		return nil
	}

	for attempt := 1; attempt <= e.config.ExecutorConfig.MaxFieldAttempts; attempt++ {
		for _, selector := range descriptor.ComposeSelectors {
			element, err := page.FindVisible(ctx, selector)
			if err != nil || element == nil {
				continue
			}

			if err := page.Click(ctx, selector); err != nil {
				e.logger.Warn("Compose click failed", zap.String(logg.Selector, selector), zap.Error(err))

				continue
			}

			rec.Step("Opened compose window via %s", selector)

			if err := e.waitOrCancelled(ctx, e.config.ExecutorConfig.SettleDelay); err != nil {
				return err
			}

			return nil
		}

		if err := e.waitOrCancelled(ctx, e.backoff(attempt)); err != nil {
			return err
		}
	}

	rec.Step("Could not open compose window after all attempts")

	return apperr.Wrap(op, apperr.CodeFieldNotFound,
		fmt.Errorf("compose control not found"),
		map[string]any{
			apperr.MetaStage:    apperr.StageCompose,
			apperr.MetaProvider: descriptor.ID,
		})
}

// fillField runs the bounded locate-and-fill loop for one role. A
// verification mismatch is retried once per fill before counting
// against the attempt bound.
func (e *Executor) fillField(
	ctx context.Context,
	descriptor *entity.ProviderDescriptor,
	role entity.FieldRole,
	value string,
	page ports.PageDriver,
	rec ports.StepRecorder,
	res *Result,
) (*entity.Element, error) {
	const op = "fillField"
	logger := e.logger.With(zap.String(logg.Operation, op), zap.String(logg.Role, string(role)))

	rec.Step("Filling %s: %s", role, truncate(value, 30))

	maxAttempts := e.config.ExecutorConfig.MaxFieldAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := e.waitOrCancelled(ctx, 0); err != nil {
			return nil, err
		}

		if attempt > 1 {
			res.FieldRetries[role]++

			if err := e.waitOrCancelled(ctx, e.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		located := e.locator.Locate(ctx, role, descriptor, page)
		res.Attempts = append(res.Attempts, located.Attempts...)

		if !located.Found() {
			logger.Warn("Field not located", zap.Int("attempt", attempt))

			continue
		}

		element := located.Element

		if err := e.fillAndVerify(ctx, element, value, page); err != nil {
			logger.Warn("Fill verification failed",
				zap.Int("attempt", attempt),
				zap.String(logg.Selector, element.Selector),
				zap.Error(err))

			continue
		}

		rec.Step("Successfully filled %s via %s", role, located.Strategy)

		return element, nil
	}

	rec.Step("Failed to fill %s after %d attempts", role, maxAttempts)

	return nil, apperr.Wrap(op, apperr.CodeFieldNotFound,
		fmt.Errorf("field %s not filled after %d attempts", role, maxAttempts),
		map[string]any{
			apperr.MetaRole:     string(role),
			apperr.MetaStage:    apperr.StageFill,
			apperr.MetaProvider: descriptor.ID,
		})
}

func (e *Executor) fillAndVerify(ctx context.Context, element *entity.Element, value string, page ports.PageDriver) error {
	const op = "fillAndVerify"

	// One verification retry per fill: set, read back, and on mismatch
	// set once more before giving up on this locate.
	for pass := 0; pass < 2; pass++ {
		if err := page.SetValue(ctx, element.Selector, value); err != nil {
			return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
				apperr.MetaSelector: element.Selector,
				apperr.MetaStage:    apperr.StageFill,
			})
		}

		read, err := page.ReadValue(ctx, element.Selector)
		if err != nil {
			return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
				apperr.MetaSelector: element.Selector,
				apperr.MetaStage:    apperr.StageVerify,
			})
		}

		if valuesMatch(value, read) {
			return nil
		}
	}

	return apperr.Wrap(op, apperr.CodeVerification,
		fmt.Errorf("field value mismatch after fill"),
		map[string]any{
			apperr.MetaSelector: element.Selector,
			apperr.MetaStage:    apperr.StageVerify,
		})
}

// verifyFields re-reads every filled field and compares against the
// instruction before declaring the composition complete.
func (e *Executor) verifyFields(
	ctx context.Context,
	instruction entity.Instruction,
	filled map[entity.FieldRole]*entity.Element,
	page ports.PageDriver,
	rec ports.StepRecorder,
) error {
	const op = "verifyFields"

	for role, element := range filled {
		expected := instruction.ValueFor(role)

		read, err := page.ReadValue(ctx, element.Selector)
		if err != nil || !valuesMatch(expected, read) {
			rec.Step("Verification failed for %s", role)

			return apperr.Wrap(op, apperr.CodeVerification,
				fmt.Errorf("re-read mismatch for %s", role),
				map[string]any{
					apperr.MetaRole:  string(role),
					apperr.MetaStage: apperr.StageVerify,
				})
		}
	}

	rec.Step("All fields verified")

	return nil
}

// locateSendButton finds the send control without clicking it:
// dispatch is suppressed by policy, so a miss here is recorded but
// never fails the task.
func (e *Executor) locateSendButton(ctx context.Context, descriptor *entity.ProviderDescriptor, page ports.PageDriver, rec ports.StepRecorder, res *Result) {
	located := e.locator.Locate(ctx, entity.RoleSendButton, descriptor, page)
	res.Attempts = append(res.Attempts, located.Attempts...)

	if located.Found() {
		rec.Step("Send button located via %s (not clicked)", located.Strategy)

		return
	}

	rec.Step("Send button not located - dispatch was suppressed anyway")
}

// backoff grows monotonically with the attempt number.
func (e *Executor) backoff(attempt int) time.Duration {
	return time.Duration(attempt) * e.config.ExecutorConfig.RetryBackoff
}

// waitOrCancelled sleeps for the delay unless the task deadline
// expires first, in which case the timeout is surfaced as the task's
// terminal error.
func (e *Executor) waitOrCancelled(ctx context.Context, delay time.Duration) error {
	const op = "waitOrCancelled"

	if delay <= 0 {
		select {
		case <-ctx.Done():
			return apperr.Wrap(op, apperr.CodeTimeout, ctx.Err(), nil)
		default:
			return nil
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return apperr.Wrap(op, apperr.CodeTimeout, ctx.Err(), nil)
	case <-timer.C:
		return nil
	}
}

// valuesMatch compares an expected value with what the page reports,
// tolerating provider-side trimming and whitespace normalization.
func valuesMatch(expected, actual string) bool {
	exp := normalize(expected)
	act := normalize(actual)

	if exp == act {
		return true
	}

	// Rich-text bodies may wrap or decorate the text; containment in
	// either direction counts as a successful fill.
	return exp != "" && act != "" && (strings.Contains(act, exp) || strings.Contains(exp, act))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
