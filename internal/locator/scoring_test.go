package locator

import (
	"testing"

	"mailagent/internal/config"
	"mailagent/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLocatorConfig() *config.LocatorConfig {
	return &config.LocatorConfig{
		SemanticThreshold:  3,
		HeuristicThreshold: 2,
		KeywordWeight:      2,
		TagWeight:          2,
		GeometryWeight:     1,
		MaxCandidates:      200,
	}
}

func TestSemanticScore(t *testing.T) {
	cfg := testLocatorConfig()

	tests := []struct {
		name      string
		role      entity.FieldRole
		element   entity.Element
		wantBelow bool
	}{
		{
			name: "recipient input with accessible name",
			role: entity.RoleRecipient,
			element: entity.Element{
				Tag: "input", AriaLabel: "To", Visible: true,
			},
		},
		{
			name: "subject input by placeholder",
			role: entity.RoleSubject,
			element: entity.Element{
				Tag: "input", Placeholder: "Add a subject", Visible: true,
			},
		},
		{
			name: "body editable region",
			role: entity.RoleBody,
			element: entity.Element{
				Tag: "div", AriaLabel: "Message body", Role: "textbox", Editable: true, Visible: true,
			},
		},
		{
			name: "send button by text",
			role: entity.RoleSendButton,
			element: entity.Element{
				Tag: "button", Text: "Send", Clickable: true, Visible: true,
			},
		},
		{
			name: "invisible element never scores",
			role: entity.RoleRecipient,
			element: entity.Element{
				Tag: "input", AriaLabel: "To", Visible: false,
			},
			wantBelow: true,
		},
		{
			name: "button text does not match recipient via substring",
			role: entity.RoleRecipient,
			element: entity.Element{
				Tag: "input", AriaLabel: "Top stories", Visible: true,
			},
			wantBelow: true,
		},
		{
			name: "non-editable div cannot be a subject",
			role: entity.RoleSubject,
			element: entity.Element{
				Tag: "div", Text: "Subject", Visible: true,
			},
			wantBelow: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := semanticScore(cfg, tt.role, &tt.element)

			if tt.wantBelow {
				assert.Less(t, got, cfg.SemanticThreshold)

				return
			}

			assert.GreaterOrEqual(t, got, cfg.SemanticThreshold)
		})
	}
}

func TestHeuristicScoreGeometry(t *testing.T) {
	cfg := testLocatorConfig()

	large := entity.Element{
		Tag: "div", Editable: true, Visible: true,
		BoundingBox: entity.BoundingBox{Width: 800, Height: 400},
	}
	small := entity.Element{
		Tag: "div", Editable: true, Visible: true,
		BoundingBox: entity.BoundingBox{Width: 300, Height: 30},
	}

	assert.Greater(t, heuristicScore(cfg, entity.RoleBody, &large),
		heuristicScore(cfg, entity.RoleBody, &small),
		"large editable regions should outscore single-line fields for body")

	assert.Greater(t, heuristicScore(cfg, entity.RoleSubject, &small),
		heuristicScore(cfg, entity.RoleSubject, &large),
		"single-line fields should outscore large regions for subject")
}

func TestPickBestTieBreaksByDocumentOrder(t *testing.T) {
	candidates := []entity.Element{
		{Selector: "#second", Tag: "input", AriaLabel: "To", Visible: true, DocOrder: 7},
		{Selector: "#first", Tag: "input", AriaLabel: "To", Visible: true, DocOrder: 3},
	}

	cfg := testLocatorConfig()

	best := pickBest(candidates, cfg.SemanticThreshold, func(el *entity.Element) int {
		return semanticScore(cfg, entity.RoleRecipient, el)
	})

	require.NotNil(t, best)
	assert.Equal(t, "#first", best.Selector)
}

func TestPickBestRespectsThreshold(t *testing.T) {
	candidates := []entity.Element{
		{Selector: "#weak", Tag: "input", Visible: true, DocOrder: 1},
	}

	cfg := testLocatorConfig()

	best := pickBest(candidates, cfg.SemanticThreshold, func(el *entity.Element) int {
		return semanticScore(cfg, entity.RoleRecipient, el)
	})

	assert.Nil(t, best)
}

func TestPositionalPick(t *testing.T) {
	candidates := []entity.Element{
		{Selector: "#nav", Tag: "a", Clickable: true, Visible: true, DocOrder: 1,
			BoundingBox: entity.BoundingBox{Y: 10, Width: 80, Height: 20}},
		{Selector: "#to", Tag: "input", Visible: true, DocOrder: 2,
			BoundingBox: entity.BoundingBox{Y: 100, Width: 400, Height: 30}},
		{Selector: "#subj", Tag: "input", Visible: true, DocOrder: 3,
			BoundingBox: entity.BoundingBox{Y: 150, Width: 400, Height: 30}},
		{Selector: "#editor", Tag: "div", Editable: true, Visible: true, DocOrder: 4,
			BoundingBox: entity.BoundingBox{Y: 200, Width: 800, Height: 500}},
		{Selector: "#send", Tag: "button", Clickable: true, Visible: true, DocOrder: 5,
			BoundingBox: entity.BoundingBox{Y: 720, Width: 90, Height: 32}},
	}

	tests := []struct {
		role entity.FieldRole
		want string
	}{
		{entity.RoleRecipient, "#to"},
		{entity.RoleSubject, "#subj"},
		{entity.RoleBody, "#editor"},
		{entity.RoleSendButton, "#send"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got := positionalPick(tt.role, candidates)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Selector)
		})
	}
}

func TestPositionalPickEmptyPage(t *testing.T) {
	for _, role := range []entity.FieldRole{entity.RoleRecipient, entity.RoleSubject, entity.RoleBody, entity.RoleSendButton} {
		assert.Nil(t, positionalPick(role, nil))
	}
}
