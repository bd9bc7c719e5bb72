package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/model"
	"github.com/clahage/my-clever-crm-sub012/internal/signal"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_ContactRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &contact.Contact{
		Phone:       "(555) 123-4567",
		Email:       "kuva.caid@yahoo.com",
		FirstName:   "Kuva",
		LastName:    "Caid",
		Category:    contact.CategoryLead,
		Status:      contact.StatusWarm,
		LeadScore:   6,
		Roles:       []string{"contact", "lead"},
		ActivityLog: []contact.ActivityEntry{},
	}
	require.NoError(t, s.CreateContact(ctx, c))
	require.NotEmpty(t, c.ID)
	assert.Equal(t, int64(1), c.Version)

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Email, got.Email)
	assert.Equal(t, c.Phone, got.Phone)
	assert.Equal(t, contact.CategoryLead, got.Category)
	assert.Equal(t, []string{"contact", "lead"}, got.Roles)
}

func TestSQLiteStore_GetContact_NotFound(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetContact(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_FindByKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &contact.Contact{
		Phone:     "(555) 123-4567",
		Email:     "kuva.caid@yahoo.com",
		FirstName: "Kuva",
		LastName:  "Caid",
		Category:  contact.CategoryLead,
	}
	require.NoError(t, s.CreateContact(ctx, c))

	byPhone, err := s.FindByPhone(ctx, "(555) 123-4567")
	require.NoError(t, err)
	require.NotNil(t, byPhone)
	assert.Equal(t, c.ID, byPhone.ID)

	byEmail, err := s.FindByEmail(ctx, "kuva.caid@yahoo.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, c.ID, byEmail.ID)

	byName, err := s.FindByName(ctx, "kuva", "CAID")
	require.NoError(t, err)
	require.NotNil(t, byName, "name lookup is case-insensitive")
	assert.Equal(t, c.ID, byName.ID)

	missing, err := s.FindByPhone(ctx, "(999) 999-9999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_FindByPhone_OldestWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := &contact.Contact{Phone: "(555) 000-0000", Category: contact.CategoryLead,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &contact.Contact{Phone: "(555) 000-0000", Category: contact.CategoryLead,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateContact(ctx, newer))
	require.NoError(t, s.CreateContact(ctx, older))

	got, err := s.FindByPhone(ctx, "(555) 000-0000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, older.ID, got.ID)
}

func TestSQLiteStore_UpdateContact_VersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &contact.Contact{Email: "a@b.com", Category: contact.CategoryLead}
	require.NoError(t, s.CreateContact(ctx, c))

	stale := *c
	c.LeadScore = 7
	require.NoError(t, s.UpdateContact(ctx, c))
	assert.Equal(t, int64(2), c.Version)

	stale.LeadScore = 3
	err := s.UpdateContact(ctx, &stale)
	require.ErrorIs(t, err, contact.ErrVersionConflict)
	assert.Equal(t, int64(1), stale.Version)

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(7), got.LeadScore)
}

func TestSQLiteStore_DeleteContact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &contact.Contact{Email: "gone@b.com", Category: contact.CategoryLead}
	require.NoError(t, s.CreateContact(ctx, c))
	require.NoError(t, s.DeleteContact(ctx, c.ID))

	got, err := s.GetContact(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = s.DeleteContact(ctx, c.ID)
	require.Error(t, err)
}

func TestSQLiteStore_SignalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveSignal(ctx, model.Signal{
		SourceID:     "call-001",
		SourceType:   model.SourceAIReceptionist,
		Phone:        "555-123-4567",
		Transcript:   "Hi, I need help with my credit report",
		DurationSecs: 245,
	})
	require.NoError(t, err)

	rec, err := s.GetSignal(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Processed)
	assert.Nil(t, rec.ProcessedAt)
	assert.Equal(t, "call-001", rec.Signal.SourceID)
	assert.Equal(t, 245, rec.Signal.DurationSecs)

	pending, err := s.ListPendingSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}

func TestSQLiteStore_MarkProcessed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveSignal(ctx, model.Signal{SourceID: "call-002", SourceType: model.SourceAIReceptionist})
	require.NoError(t, err)

	err = s.MarkProcessed(ctx, id, signal.Result{
		ContactID:   "c-1",
		Action:      "created",
		ProcessedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	rec, err := s.GetSignal(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Processed)
	require.NotNil(t, rec.ProcessedAt)
	assert.Equal(t, "c-1", rec.ContactID)
	assert.Equal(t, "created", rec.Action)

	pending, err := s.ListPendingSignals(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteStore_MarkProcessed_FailureKeepsUnprocessed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveSignal(ctx, model.Signal{SourceID: "call-003", SourceType: model.SourceAIReceptionist})
	require.NoError(t, err)

	err = s.MarkProcessed(ctx, id, signal.Result{Err: "store unavailable"})
	require.NoError(t, err)

	rec, err := s.GetSignal(ctx, id)
	require.NoError(t, err)
	assert.False(t, rec.Processed)
	assert.Equal(t, "store unavailable", rec.Error)

	// Failed records are held out of the pending queue until retried
	// explicitly.
	pending, err := s.ListPendingSignals(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteStore_MergeLease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireMergeLease(ctx, "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireMergeLease(ctx, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "live lease is not stolen")

	// Re-acquire by the same holder extends the lease.
	ok, err = s.AcquireMergeLease(ctx, "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.ReleaseMergeLease(ctx, "worker-a"))

	ok, err = s.AcquireMergeLease(ctx, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_ExpiredLeaseIsStolen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.AcquireMergeLease(ctx, "worker-a", -time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireMergeLease(ctx, "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_ListContacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, s.CreateContact(ctx, &contact.Contact{Email: email, Category: contact.CategoryLead}))
	}

	all, err := s.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
