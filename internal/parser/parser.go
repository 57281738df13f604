package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mailagent/internal/entity"
	"mailagent/internal/ports"
	"mailagent/pkg/apperr"
	"mailagent/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultSubject = "Automated Message"

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	contentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)saying ["']([^"']+)["']`),
		regexp.MustCompile(`(?i)saying (.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)about ["']([^"']+)["']`),
		regexp.MustCompile(`(?i)about (.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)regarding (.+?)(?:\.|$)`),
		regexp.MustCompile(`(?i)subject (.+?)(?:\.|$)`),
	}
)

// Parser extracts a structured instruction from free-form text with
// deterministic pattern rules. It is the black-box collaborator the
// core consumes; the core makes no assumption beyond a non-empty
// address-like recipient.
type Parser struct {
	logger *zap.Logger
}

type Params struct {
	fx.In

	Logger *zap.Logger
}

func NewParser(params Params) *Parser {
	return &Parser{
		logger: params.Logger.With(zap.String(logg.Layer, "InstructionParser")),
	}
}

var _ ports.InstructionParser = (*Parser)(nil)

func (p *Parser) Parse(text string) (entity.Instruction, error) {
	const op = "Parse"

	text = strings.TrimSpace(text)
	if text == "" {
		return entity.Instruction{}, apperr.InvalidReqError(op, "instruction", errors.New("instruction cannot be empty"))
	}

	recipient := emailPattern.FindString(text)
	if recipient == "" {
		return entity.Instruction{}, apperr.InvalidReqError(op, "recipient",
			fmt.Errorf("no recipient address in %q", text))
	}

	content := ""

	for _, pattern := range contentPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			content = strings.TrimSpace(match[1])

			break
		}
	}

	subject := defaultSubject
	if content != "" {
		subject = titleCase(content)
	}

	body := content
	if body == "" {
		body = fmt.Sprintf("Hello,\n\nThis is an automated message regarding: %s\n\nBest regards", subject)
	}

	instruction := entity.Instruction{
		Recipient: strings.ToLower(recipient),
		Subject:   subject,
		Body:      body,
	}

	p.logger.Debug("Instruction parsed",
		zap.String("recipient", instruction.Recipient),
		zap.String("subject", instruction.Subject))

	return instruction, nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}

	return strings.Join(words, " ")
}
