package browser

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

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	sessionName    = "PageSession"
	probeTimeout   = 2000
	fillTimeout    = 5000
	clickTimeout   = 15000
	maxFillRetries = 2
	settleDelay    = 300 * time.Millisecond
)

// session is the per-task PageDriver over one playwright page. When
// the session owns its browser context (non-persistent mode), Close
// tears the context down with the page.
type session struct {
	page    playwright.Page
	ownCtx  playwright.BrowserContext
	config  *config.Config
	logger  *zap.Logger
	maxScan int
}

func newSession(page playwright.Page, ownCtx playwright.BrowserContext, cfg *config.Config, logger *zap.Logger) *session {
	return &session{
		page:    page,
		ownCtx:  ownCtx,
		config:  cfg,
		logger:  logger.With(zap.String(logg.Layer, sessionName)),
		maxScan: cfg.LocatorConfig.MaxCandidates,
	}
}

var _ ports.PageDriver = (*session)(nil)

func (s *session) Navigate(ctx context.Context, url string) error {
	const op = "Navigate"

	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(s.config.BrowserConfig.Timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeNavigation, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	time.Sleep(settleDelay)

	return nil
}

// FindVisible resolves a selector to a visible element, or (nil, nil)
// when nothing qualifies within the probe window. Probe misses are the
// locator's signal to fall through, not errors.
func (s *session) FindVisible(ctx context.Context, selector string) (*entity.Element, error) {
	const op = "FindVisible"

	handle, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(probeTimeout),
		State:   playwright.WaitForSelectorStateVisible,
	})
	if err != nil || handle == nil {
		return nil, nil
	}

	described, err := handle.Evaluate(`el => {
		const rect = el.getBoundingClientRect();
		const role = el.getAttribute('role') || '';
		const tag = el.tagName.toLowerCase();
		return {
			tag: tag,
			ariaLabel: el.getAttribute('aria-label') || '',
			placeholder: el.getAttribute('placeholder') || '',
			name: el.getAttribute('name') || '',
			role: role,
			type: el.getAttribute('type') || '',
			editable: el.isContentEditable || tag === 'textarea' || tag === 'input' || role === 'textbox',
			x: rect.left, y: rect.top, width: rect.width, height: rect.height
		};
	}`)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason:   "describe_failed",
			apperr.MetaSelector: selector,
		})
	}

	elemMap, ok := described.(map[string]interface{})
	if !ok {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeInternal, "unexpected_result_type")
	}

	element := elementFromMap(elemMap)
	element.Selector = selector
	element.Visible = true

	return &element, nil
}

func (s *session) QueryCandidates(ctx context.Context, scan ports.Scan) ([]entity.Element, error) {
	const op = "QueryCandidates"

	s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(fillTimeout),
	})

	script := candidatesScript(scan == ports.ScanAll, s.maxScan)

	result, err := s.page.Evaluate(script)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
		})
	}

	rawList, ok := result.([]interface{})
	if !ok {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeInternal, "unexpected_result_type")
	}

	elements := make([]entity.Element, 0, len(rawList))

	for _, item := range rawList {
		elemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		elements = append(elements, elementFromMap(elemMap))
	}

	return elements, nil
}

func (s *session) SetValue(ctx context.Context, selector, value string) error {
	const op = "SetValue"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	var lastErr error

	for attempt := 0; attempt <= maxFillRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("Retrying fill", zap.Int("attempt", attempt))
			time.Sleep(settleDelay)

			// Clear out a partial fill before forcing the retry.
			_ = s.page.Fill(selector, "", playwright.PageFillOptions{
				Timeout: playwright.Float(fillTimeout),
			})
		}

		lastErr = s.page.Fill(selector, value, playwright.PageFillOptions{
			Timeout: playwright.Float(fillTimeout),
			Force:   playwright.Bool(attempt > 0),
		})
		if lastErr == nil {
			time.Sleep(settleDelay)

			return nil
		}
	}

	return apperr.Wrap(op, apperr.CodeActionFailed, lastErr, map[string]any{
		apperr.MetaReason:   "fill_failed_after_retries",
		apperr.MetaStage:    apperr.StageFill,
		apperr.MetaSelector: selector,
	})
}

func (s *session) ReadValue(ctx context.Context, selector string) (string, error) {
	const op = "ReadValue"

	result, err := s.page.Evaluate(fmt.Sprintf(`(() => {
		const el = document.querySelector('%s');
		if (!el) return null;
		if (el.value !== undefined && el.value !== null && el.tagName.toLowerCase() !== 'div') {
			return el.value;
		}
		return el.innerText || el.textContent || '';
	})()`, escapeSelector(selector)))
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "read_value_failed",
			apperr.MetaSelector: selector,
		})
	}

	if result == nil {
		return "", apperr.Wrap(op, apperr.CodeActionFailed,
			fmt.Errorf("element not found: %s", selector),
			map[string]any{apperr.MetaSelector: selector})
	}

	text, ok := result.(string)
	if !ok {
		return "", apperr.WrapErrorWithReason(op, apperr.CodeInternal, "unexpected_result_type")
	}

	return text, nil
}

// Click scrolls the target into view and clicks, falling back to a
// forced click and then a direct JS click for stubborn overlays.
func (s *session) Click(ctx context.Context, selector string) error {
	const op = "Click"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	strategies := []struct {
		name string
		fn   func() error
	}{
		{
			name: "wait_and_click",
			fn: func() error {
				_, _ = s.page.Evaluate(fmt.Sprintf(`(() => {
					const el = document.querySelector('%s');
					if (el) el.scrollIntoView({behavior: 'instant', block: 'center'});
				})()`, escapeSelector(selector)))

				return s.page.Click(selector, playwright.PageClickOptions{
					Timeout: playwright.Float(clickTimeout),
				})
			},
		},
		{
			name: "force_click",
			fn: func() error {
				return s.page.Click(selector, playwright.PageClickOptions{
					Timeout: playwright.Float(clickTimeout),
					Force:   playwright.Bool(true),
				})
			},
		},
		{
			name: "js_direct_click",
			fn: func() error {
				result, err := s.page.Evaluate(fmt.Sprintf(`(() => {
					const el = document.querySelector('%s');
					if (!el) return false;
					el.scrollIntoView({behavior: 'instant', block: 'center'});
					el.click();
					return true;
				})()`, escapeSelector(selector)))
				if err != nil {
					return err
				}

				if clicked, ok := result.(bool); !ok || !clicked {
					return fmt.Errorf("element not found for js click")
				}

				return nil
			},
		},
	}

	var lastErr error

	for _, strategy := range strategies {
		if err := strategy.fn(); err == nil {
			time.Sleep(settleDelay)

			return nil
		} else {
			lastErr = err
			logger.Debug("Click strategy failed", zap.String("strategy", strategy.name), zap.Error(err))
		}
	}

	return apperr.Wrap(op, apperr.CodeActionFailed, lastErr, map[string]any{
		apperr.MetaReason:   "click_failed_all_strategies",
		apperr.MetaSelector: selector,
	})
}

func (s *session) Close(ctx context.Context) error {
	const op = "Close"

	if err := s.page.Close(); err != nil {
		s.logger.Warn("Page close failed", zap.Error(err))
	}

	if s.ownCtx != nil {
		if err := s.ownCtx.Close(); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "context_close_failed",
			})
		}
	}

	return nil
}

func escapeSelector(selector string) string {
	return strings.ReplaceAll(selector, "'", "\\'")
}

func elementFromMap(m map[string]interface{}) entity.Element {
	return entity.Element{
		Tag:         getString(m, "tag"),
		Selector:    getString(m, "selector"),
		Text:        strings.TrimSpace(getString(m, "text")),
		AriaLabel:   getString(m, "ariaLabel"),
		Placeholder: getString(m, "placeholder"),
		LabelText:   getString(m, "labelText"),
		Name:        getString(m, "name"),
		Role:        getString(m, "role"),
		Type:        getString(m, "type"),
		Editable:    getBool(m, "editable"),
		Clickable:   getBool(m, "clickable"),
		Visible:     getBool(m, "visible"),
		DocOrder:    int(getFloat(m, "docOrder")),
		BoundingBox: entity.BoundingBox{
			X:      getFloat(m, "x"),
			Y:      getFloat(m, "y"),
			Width:  getFloat(m, "width"),
			Height: getFloat(m, "height"),
		},
	}
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}

	return false
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}

	if v, ok := m[key].(int); ok {
		return float64(v)
	}

	return 0
}
