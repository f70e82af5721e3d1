package context_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pcontext "github.com/poltergeist/atlaspack/pkg/context"
)

func TestNewRun(t *testing.T) {
	ctx := pcontext.NewRun(context.Background(), "sprites", pcontext.TriggerWatch)

	assert.True(t, strings.HasPrefix(pcontext.GetRunID(ctx), "run_"))
	assert.Equal(t, "sprites", pcontext.GetTarget(ctx))
	assert.Equal(t, pcontext.TriggerWatch, pcontext.GetTrigger(ctx))
	assert.GreaterOrEqual(t, pcontext.GetDuration(ctx), time.Duration(0))
}

func TestRunIDsAreUnique(t *testing.T) {
	a := pcontext.GetRunID(pcontext.WithRunID(context.Background(), ""))
	b := pcontext.GetRunID(pcontext.WithRunID(context.Background(), ""))
	assert.NotEqual(t, a, b)

	assert.Equal(t, "run_fixed", pcontext.GetRunID(pcontext.WithRunID(context.Background(), "run_fixed")))
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, pcontext.GetRunID(ctx))
	assert.Empty(t, pcontext.GetTarget(ctx))
	assert.Equal(t, pcontext.TriggerCommand, pcontext.GetTrigger(ctx))
	assert.Zero(t, pcontext.GetDuration(ctx))
}
