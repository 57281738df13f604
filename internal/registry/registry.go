package registry

import (
	"fmt"
	"strings"

	"mailagent/internal/entity"
	"mailagent/pkg/apperr"
)

const (
	ProviderGmail   = "gmail"
	ProviderOutlook = "outlook"
	ProviderGeneric = "generic"
)

// Registry is the process-wide provider table. Built once at startup
// and never mutated, so concurrent reads need no locking.
type Registry struct {
	byID    map[string]*entity.ProviderDescriptor
	ordered []*entity.ProviderDescriptor
	generic *entity.ProviderDescriptor
}

func NewRegistry() *Registry {
	descriptors := []*entity.ProviderDescriptor{
		gmailDescriptor(),
		outlookDescriptor(),
	}

	byID := make(map[string]*entity.ProviderDescriptor, len(descriptors))
	for _, d := range descriptors {
		byID[d.ID] = d
	}

	return &Registry{
		byID:    byID,
		ordered: descriptors,
		generic: genericDescriptor(),
	}
}

// Resolve maps a provider identifier or URL to a descriptor. Exact
// identifier match wins, then the longest matching base-URL prefix. URL
// targets with no match fall back to the generic descriptor; unknown
// bare identifiers are not supported.
func (r *Registry) Resolve(target string) (*entity.ProviderDescriptor, error) {
	const op = "Resolve"

	target = strings.TrimSpace(strings.ToLower(target))
	if target == "" {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeNotSupported, "empty_target")
	}

	if d, ok := r.byID[target]; ok {
		return d, nil
	}

	if target == ProviderGeneric {
		return r.generic, nil
	}

	if !looksLikeURL(target) {
		return nil, apperr.Wrap(op, apperr.CodeNotSupported,
			fmt.Errorf("unknown provider %q", target),
			map[string]any{apperr.MetaProvider: target})
	}

	var best *entity.ProviderDescriptor
	for _, d := range r.ordered {
		if !d.MatchesURL(target) {
			continue
		}

		if best == nil || len(d.BaseURLPattern) > len(best.BaseURLPattern) {
			best = d
		}
	}

	if best != nil {
		return best, nil
	}

	// Unknown service: hand back the generic descriptor pointed at the
	// requested URL so strategies 2-4 carry the whole location burden.
	custom := *r.generic
	custom.ComposeURL = ensureScheme(target)

	return &custom, nil
}

func ensureScheme(target string) string {
	if strings.Contains(target, "://") {
		return target
	}

	return "https://" + target
}

func (r *Registry) Descriptors() []*entity.ProviderDescriptor {
	return r.ordered
}

func (r *Registry) Generic() *entity.ProviderDescriptor {
	return r.generic
}

func looksLikeURL(target string) bool {
	return strings.Contains(target, "://") || strings.Contains(target, ".")
}

func gmailDescriptor() *entity.ProviderDescriptor {
	return &entity.ProviderDescriptor{
		ID:             ProviderGmail,
		DisplayName:    "Gmail",
		ComposeURL:     "https://mail.google.com",
		BaseURLPattern: "mail.google.com",
		ComposeSelectors: []string{
			`div[role="button"][gh="cm"]`,
			`button[aria-label*="Compose"]`,
			`div:has-text("Compose")`,
		},
		Selectors: map[entity.FieldRole][]string{
			entity.RoleRecipient: {
				`input[aria-label*="To"]`,
				`textarea[name="to"]`,
				`input[name="to"]`,
				`div[aria-label*="To"] input`,
			},
			entity.RoleSubject: {
				`input[name="subjectbox"]`,
				`input[aria-label*="Subject"]`,
				`input[placeholder*="Subject"]`,
			},
			entity.RoleBody: {
				`div[aria-label*="Message body"]`,
				`div[role="textbox"]`,
				`div[contenteditable="true"]`,
			},
			entity.RoleSendButton: {
				`div[role="button"][aria-label*="Send"]`,
				`div[data-tooltip*="Send"]`,
			},
		},
		LoginMarkers: []string{
			`input[type="email"]`,
			`input[type="password"]`,
			`div:has-text("Sign in")`,
			`div:has-text("Choose an account")`,
		},
		Capabilities: []entity.Capability{entity.CapabilityComposeEmail},
	}
}

func outlookDescriptor() *entity.ProviderDescriptor {
	return &entity.ProviderDescriptor{
		ID:             ProviderOutlook,
		DisplayName:    "Outlook",
		ComposeURL:     "https://outlook.live.com",
		BaseURLPattern: "outlook.live.com",
		ComposeSelectors: []string{
			`button[aria-label*="New mail"]`,
			`button[aria-label*="New message"]`,
			`button:has-text("New mail")`,
			`div[role="button"]:has-text("New")`,
		},
		Selectors: map[entity.FieldRole][]string{
			entity.RoleRecipient: {
				`input[aria-label*="To"]`,
				`div[aria-label*="To"] input`,
				`input[placeholder*="Enter names"]`,
			},
			entity.RoleSubject: {
				`input[aria-label*="Add a subject"]`,
				`input[placeholder*="Add a subject"]`,
			},
			entity.RoleBody: {
				`div[aria-label*="Message body"]`,
				`div[role="textbox"]`,
				`div[contenteditable="true"]`,
			},
			entity.RoleSendButton: {
				`button[aria-label*="Send"]`,
				`button:has-text("Send")`,
			},
		},
		LoginMarkers: []string{
			`input[type="email"]`,
			`input[type="password"]`,
			`button:has-text("Sign in")`,
		},
		Capabilities: []entity.Capability{entity.CapabilityComposeEmail},
	}
}

// genericDescriptor has no service-specific selectors at all: locating
// relies entirely on the semantic, heuristic and positional strategies.
func genericDescriptor() *entity.ProviderDescriptor {
	return &entity.ProviderDescriptor{
		ID:          ProviderGeneric,
		DisplayName: "Generic",
		ComposeSelectors: []string{
			`button:has-text("Compose")`,
			`a:has-text("Compose")`,
			`[data-testid*="compose"]`,
		},
		Selectors: map[entity.FieldRole][]string{},
		LoginMarkers: []string{
			`input[type="password"]`,
		},
		Capabilities: []entity.Capability{entity.CapabilityComposeEmail},
	}
}
