package locator

import (
	"strings"

	"mailagent/internal/config"
	"mailagent/internal/entity"
)

// roleKeywords are the per-role keyword sets the semantic and heuristic
// strategies match element text against.
var roleKeywords = map[entity.FieldRole][]string{
	entity.RoleRecipient:  {"to", "recipient", "recipients", "address", "send to", "email to"},
	entity.RoleSubject:    {"subject", "title", "topic"},
	entity.RoleBody:       {"body", "message", "content", "compose", "write"},
	entity.RoleSendButton: {"send", "submit", "deliver"},
}

// bodyAreaFloor is the element area above which an editable region
// starts looking like a message body rather than a one-line field.
const bodyAreaFloor = 40000.0

// singleLineHeight bounds the rendered height of a plausible one-line
// input (recipient, subject).
const singleLineHeight = 64.0

func keywordScore(role entity.FieldRole, el *entity.Element, weight int) int {
	haystack := strings.ToLower(strings.Join([]string{
		el.AriaLabel, el.Placeholder, el.LabelText, el.Name, el.Text,
	}, " "))

	score := 0

	for _, kw := range roleKeywords[role] {
		if kw == "to" {
			// "to" is too short for substring matching; require a
			// token boundary so "button" or "top" do not score.
			if hasToken(haystack, "to") {
				score += weight
			}

			continue
		}

		if strings.Contains(haystack, kw) {
			score += weight
		}
	}

	return score
}

func hasToken(haystack, token string) bool {
	for _, field := range strings.FieldsFunc(haystack, func(r rune) bool {
		return r == ' ' || r == ':' || r == ',' || r == '-' || r == '_' || r == '/'
	}) {
		if field == token {
			return true
		}
	}

	return false
}

// semanticScore rates one conventionally interactive element for a
// role using accessible name, placeholder, label and role/type
// attributes. Pure; no page access.
func semanticScore(cfg *config.LocatorConfig, role entity.FieldRole, el *entity.Element) int {
	if !el.Visible {
		return 0
	}

	score := keywordScore(role, el, cfg.KeywordWeight)

	switch role {
	case entity.RoleRecipient, entity.RoleSubject:
		if el.Tag == "input" || el.Tag == "textarea" {
			score += cfg.TagWeight
		}

		if el.Type == "email" && role == entity.RoleRecipient {
			score += cfg.TagWeight
		}
	case entity.RoleBody:
		if el.Editable || el.Tag == "textarea" {
			score += cfg.TagWeight
		}

		if el.Role == "textbox" {
			score += cfg.TagWeight
		}
	case entity.RoleSendButton:
		if el.Tag == "button" || el.Role == "button" {
			score += cfg.TagWeight
		}
	}

	if score == 0 {
		return 0
	}

	if !eligibleForRole(role, el) {
		return 0
	}

	return score
}

// heuristicScore extends the semantic signal with geometry: message
// bodies are large editable regions, subjects and recipients are short
// single-line fields, send controls sit below the fields they submit.
func heuristicScore(cfg *config.LocatorConfig, role entity.FieldRole, el *entity.Element) int {
	if !el.Visible {
		return 0
	}

	score := keywordScore(role, el, cfg.KeywordWeight)

	box := el.BoundingBox

	switch role {
	case entity.RoleBody:
		if el.Editable {
			score += cfg.TagWeight
		}

		if box.Area() >= bodyAreaFloor {
			score += cfg.GeometryWeight
		}
	case entity.RoleRecipient, entity.RoleSubject:
		if el.Tag == "input" || el.Tag == "textarea" || el.Editable {
			score += cfg.TagWeight
		}

		if box.Height > 0 && box.Height <= singleLineHeight {
			score += cfg.GeometryWeight
		}
	case entity.RoleSendButton:
		if el.Clickable {
			score += cfg.TagWeight
		}

		if box.Height > 0 && box.Height <= singleLineHeight && box.Area() < bodyAreaFloor {
			score += cfg.GeometryWeight
		}
	}

	if score == 0 || !eligibleForRole(role, el) {
		return 0
	}

	return score
}

// eligibleForRole filters out elements that could never serve the role
// no matter how well their text matches.
func eligibleForRole(role entity.FieldRole, el *entity.Element) bool {
	switch role {
	case entity.RoleRecipient, entity.RoleSubject:
		return el.Tag == "input" || el.Tag == "textarea" || el.Editable
	case entity.RoleBody:
		return el.Editable || el.Tag == "textarea"
	case entity.RoleSendButton:
		return el.Clickable
	default:
		return false
	}
}

// pickBest returns the highest-scoring candidate at or above the
// threshold. Ties break toward the earliest document order, which keeps
// the cascade deterministic for identical pages.
func pickBest(candidates []entity.Element, threshold int, score func(*entity.Element) int) *entity.Element {
	var (
		best      *entity.Element
		bestScore int
	)

	for i := range candidates {
		el := &candidates[i]

		s := score(el)
		if s < threshold || s == 0 {
			continue
		}

		if best == nil || s > bestScore || (s == bestScore && el.DocOrder < best.DocOrder) {
			best = el
			bestScore = s
		}
	}

	return best
}

// positionalPick chooses purely by expected layout for the role: the
// topmost single-line field for recipient, the next one down for
// subject, the largest editable region for body, and the last
// interactive control for the send button.
func positionalPick(role entity.FieldRole, candidates []entity.Element) *entity.Element {
	switch role {
	case entity.RoleRecipient:
		return topmostField(candidates, nil)
	case entity.RoleSubject:
		first := topmostField(candidates, nil)
		if first == nil {
			return nil
		}

		return topmostField(candidates, first)
	case entity.RoleBody:
		var best *entity.Element

		for i := range candidates {
			el := &candidates[i]
			if !el.Visible || !eligibleForRole(entity.RoleBody, el) {
				continue
			}

			if best == nil || el.BoundingBox.Area() > best.BoundingBox.Area() {
				best = el
			}
		}

		return best
	case entity.RoleSendButton:
		var best *entity.Element

		for i := range candidates {
			el := &candidates[i]
			if !el.Visible || !el.Clickable {
				continue
			}

			if best == nil || el.DocOrder > best.DocOrder {
				best = el
			}
		}

		return best
	default:
		return nil
	}
}

func topmostField(candidates []entity.Element, skip *entity.Element) *entity.Element {
	var best *entity.Element

	for i := range candidates {
		el := &candidates[i]
		if el == skip || (skip != nil && el.Selector == skip.Selector) {
			continue
		}

		if !el.Visible || !eligibleForRole(entity.RoleRecipient, el) {
			continue
		}

		if el.BoundingBox.Height > singleLineHeight {
			continue
		}

		if best == nil || el.BoundingBox.Y < best.BoundingBox.Y {
			best = el
		}
	}

	return best
}
