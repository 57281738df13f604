package steplog_test

import (
	"testing"

	"mailagent/internal/steplog"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRecorderKeepsOrder(t *testing.T) {
	rec := steplog.New(zap.NewNop(), "gmail")

	rec.Step("Navigating to %s", "https://mail.google.com")
	rec.Step("No authentication wall - compose UI reachable")
	rec.Step("Filling %s: %s", "recipient", "ops@example.com")

	assert.Equal(t, []string{
		"Navigating to https://mail.google.com",
		"No authentication wall - compose UI reachable",
		"Filling recipient: ops@example.com",
	}, rec.Steps())
}

func TestStepsReturnsACopy(t *testing.T) {
	rec := steplog.New(zap.NewNop(), "gmail")
	rec.Step("first")

	snapshot := rec.Steps()
	rec.Step("second")

	assert.Len(t, snapshot, 1)
	assert.Len(t, rec.Steps(), 2)
}
