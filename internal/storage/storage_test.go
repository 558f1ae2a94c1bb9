package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/remitos/internal/common"
	"github.com/Veraticus/remitos/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func intPtr(i int) *int { return &i }

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))

	for _, table := range []string{"call_budget", "documents", "page_outcomes", "outcome_history"} {
		var name string
		err := store.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_NilContext(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	//nolint:staticcheck // testing nil context handling
	err = store.Migrate(nil)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestNewSQLiteStorage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "remitos.db")

	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Close())

	// Reopening sees the migrated schema.
	reopened, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	version, err := reopened.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestBudget(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	window, err := store.LoadBudget(ctx)
	require.NoError(t, err)
	assert.True(t, window.WindowStart.IsZero())
	assert.Zero(t, window.CallsInWindow)

	start := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	require.NoError(t, store.SaveBudget(ctx, model.BudgetWindow{WindowStart: start, CallsInWindow: 3}))

	window, err = store.LoadBudget(ctx)
	require.NoError(t, err)
	assert.True(t, start.Equal(window.WindowStart))
	assert.Equal(t, 3, window.CallsInWindow)

	require.NoError(t, store.SaveBudget(ctx, model.BudgetWindow{WindowStart: start, CallsInWindow: 4}))
	window, err = store.LoadBudget(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, window.CallsInWindow)

	require.NoError(t, store.ResetBudget(ctx))
	window, err = store.LoadBudget(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.BudgetWindow{}, window)
}

func TestBudget_AddCall(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	window, err := store.AddCall(ctx, start, time.Hour)
	require.NoError(t, err)
	assert.True(t, start.Equal(window.WindowStart))
	assert.Equal(t, 1, window.CallsInWindow)

	window, err = store.AddCall(ctx, start.Add(30*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.True(t, start.Equal(window.WindowStart))
	assert.Equal(t, 2, window.CallsInWindow)

	loaded, err := store.LoadBudget(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.CallsInWindow)

	window, err = store.AddCall(ctx, start.Add(time.Hour), time.Hour)
	require.NoError(t, err)
	assert.True(t, start.Add(time.Hour).Equal(window.WindowStart))
	assert.Equal(t, 1, window.CallsInWindow)
}

func TestBudget_AddCallSharedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "remitos.db")

	first, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()
	require.NoError(t, first.Migrate(ctx))

	second, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	const perStore = 10

	var wg sync.WaitGroup
	for _, store := range []*SQLiteStorage{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perStore {
				_, addErr := store.AddCall(ctx, now, time.Hour)
				assert.NoError(t, addErr)
			}
		}()
	}
	wg.Wait()

	window, err := first.LoadBudget(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*perStore, window.CallsInWindow)
}

func TestBudget_Validation(t *testing.T) {
	store := setupTestDB(t)

	err := store.SaveBudget(context.Background(), model.BudgetWindow{CallsInWindow: -1})
	assert.ErrorIs(t, err, ErrInvalidProgress)

	//nolint:staticcheck // testing nil context handling
	_, err = store.LoadBudget(nil)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	_, err := store.GetProgress(ctx, "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)

	progress := &model.DocumentProgress{
		Hash:        "abc",
		Name:        "remitos.pdf",
		PageCount:   5,
		ResumeIndex: intPtr(2),
	}
	require.NoError(t, store.SaveProgress(ctx, progress))

	got, err := store.GetProgress(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "remitos.pdf", got.Name)
	assert.Equal(t, 5, got.PageCount)
	require.NotNil(t, got.ResumeIndex)
	assert.Equal(t, 2, *got.ResumeIndex)
	assert.False(t, got.Complete())

	progress.ResumeIndex = nil
	require.NoError(t, store.SaveProgress(ctx, progress))

	got, err = store.GetProgress(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got.ResumeIndex)
	assert.True(t, got.Complete())
}

func TestProgress_Validation(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	tests := []struct {
		progress *model.DocumentProgress
		wantErr  error
		name     string
	}{
		{name: "nil progress", progress: nil, wantErr: ErrNilParameter},
		{name: "empty hash", progress: &model.DocumentProgress{PageCount: 1}, wantErr: ErrEmptyString},
		{name: "negative pages", progress: &model.DocumentProgress{Hash: "h", PageCount: -1}, wantErr: ErrInvalidProgress},
		{name: "resume past end", progress: &model.DocumentProgress{Hash: "h", PageCount: 2, ResumeIndex: intPtr(2)}, wantErr: ErrInvalidProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, store.SaveProgress(ctx, tt.progress), tt.wantErr)
		})
	}
}

func TestOutcomes(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	id := model.Identifier{Branch: "0001", Number: "00001234"}
	require.NoError(t, store.SaveOutcome(ctx, "doc", 0, model.Classified(id, model.SourceEmbedded)))
	require.NoError(t, store.SaveOutcome(ctx, "doc", 1, model.Unclassified(model.ReasonOCRSkippedRateLimit, "")))
	require.NoError(t, store.SaveOutcome(ctx, "doc", 2, model.Unclassified(model.ReasonOCRError, "boom")))
	require.NoError(t, store.SaveOutcome(ctx, "other", 0, model.Unclassified(model.ReasonNoMatch, "")))

	outcomes, err := store.GetOutcomes(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, model.Classified(id, model.SourceEmbedded), outcomes[0])
	assert.Equal(t, model.Unclassified(model.ReasonOCRSkippedRateLimit, ""), outcomes[1])
	assert.Equal(t, model.Unclassified(model.ReasonOCRError, "boom"), outcomes[2])

	// A later run replaces the skipped page.
	ocrID := model.Identifier{Branch: "0002", Number: "00000007"}
	require.NoError(t, store.SaveOutcome(ctx, "doc", 1, model.Classified(ocrID, model.SourceOCR)))

	outcomes, err = store.GetOutcomes(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, model.Classified(ocrID, model.SourceOCR), outcomes[1])

	history, err := store.OutcomeHistory(ctx, "doc", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, history)

	empty, err := store.GetOutcomes(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOutcomes_Validation(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t)

	tests := []struct {
		wantErr error
		outcome model.Outcome
		name    string
		hash    string
		page    int
	}{
		{name: "empty hash", hash: "", outcome: model.Unclassified(model.ReasonNoMatch, ""), wantErr: ErrEmptyString},
		{name: "negative page", hash: "h", page: -1, outcome: model.Unclassified(model.ReasonNoMatch, ""), wantErr: ErrInvalidOutcome},
		{name: "bad identifier", hash: "h", outcome: model.Classified(model.Identifier{Branch: "1", Number: "2"}, model.SourceOCR), wantErr: ErrInvalidOutcome},
		{name: "unknown reason", hash: "h", outcome: model.Unclassified("WHATEVER", ""), wantErr: ErrInvalidOutcome},
		{name: "unknown status", hash: "h", outcome: model.Outcome{Status: "MAYBE"}, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.SaveOutcome(ctx, tt.hash, tt.page, tt.outcome)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
