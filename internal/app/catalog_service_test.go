package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/toolstudio/pkg/domain/catalog"
	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

func TestCatalogService_ListEntries(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{})
	svc := NewCatalogService(l.catalog, l.svc, l.log)
	cache := newMemCache[[]catalog.Entry]()
	svc.SetCache(cache)
	ctx := context.Background()

	// A tool without an active version is not invocable.
	l.seedTool(t, "no-version")

	entries, err := svc.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ledger", entries[0].Slug)
	assert.Equal(t, l.version.ID, entries[0].VersionID)
	assert.JSONEq(t, testInputSchema, string(entries[0].InputSchema))

	_, err = svc.ListEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	tools := l.toolService()
	tools.SetCatalogInvalidator(svc)
	_, err = tools.UpdateTool(ctx, l.owner.ID, UpdateToolInput{IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, cache.has(catalogKey))

	entries, err = svc.ListEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCatalogService_InvokeBySlug(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{ValidateInput: true})
	svc := NewCatalogService(l.catalog, l.svc, l.log)
	ctx := context.Background()

	e, entry, err := svc.InvokeBySlug(ctx, "ledger", json.RawMessage(`{"expression":"1+1"}`), "claude")
	require.NoError(t, err)
	assert.Equal(t, l.owner.ID, entry.ToolID)
	assert.Equal(t, execution.StatusRunning, e.Status)
	assert.Equal(t, "claude", e.LLMSource)
	assert.NotEmpty(t, e.RequestID)

	again, _, err := svc.InvokeBySlug(ctx, "ledger", json.RawMessage(`{"expression":"1+1"}`), "claude")
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, again.ID, "each invocation gets its own request id")

	_, _, err = svc.InvokeBySlug(ctx, "ledger", json.RawMessage(`{"expression":1}`), "")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, _, err = svc.InvokeBySlug(ctx, "missing", nil, "")
	assert.True(t, shared.IsNotFound(err))
}

func TestCatalogService_InvokeDefaultsEmptyInput(t *testing.T) {
	l := newLedgerFixture(t, ExecutionServiceConfig{})
	svc := NewCatalogService(l.catalog, l.svc, l.log)

	e, err := svc.Invoke(context.Background(), InvokeInput{
		ToolID:    l.owner.ID.Int64(),
		VersionID: l.version.ID.Int64(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(e.InputPayload))
}
