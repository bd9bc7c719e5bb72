package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/model"
	"github.com/clahage/my-clever-crm-sub012/internal/signal"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_FindByPhone_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT doc FROM contacts WHERE phone = \$1`).
		WithArgs("(555) 123-4567").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.FindByPhone(context.Background(), "(555) 123-4567")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByPhone_EmptyKeySkipsQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	c, err := s.FindByPhone(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByEmail_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stored := contact.Contact{ID: "c-1", Email: "kuva.caid@yahoo.com", Category: contact.CategoryLead, Version: 3}
	doc, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT doc FROM contacts WHERE email = \$1`).
		WithArgs("kuva.caid@yahoo.com").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(doc))

	c, err := s.FindByEmail(context.Background(), "kuva.caid@yahoo.com")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, int64(3), c.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateContact_VersionConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts SET`).
		WithArgs(pgxmock.AnyArg(), "(555) 123-4567", "kuva.caid@yahoo.com", "Kuva", "Caid",
			"lead", int64(3), pgxmock.AnyArg(), "c-1", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	c := &contact.Contact{
		ID:        "c-1",
		Phone:     "(555) 123-4567",
		Email:     "kuva.caid@yahoo.com",
		FirstName: "Kuva",
		LastName:  "Caid",
		Category:  contact.CategoryLead,
		Version:   2,
	}
	err := s.UpdateContact(context.Background(), c)
	require.ErrorIs(t, err, contact.ErrVersionConflict)
	assert.Equal(t, int64(2), c.Version, "version restored after conflict")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateContact_IncrementsVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE contacts SET`).
		WithArgs(pgxmock.AnyArg(), "", "a@b.com", "", "",
			"lead", int64(2), pgxmock.AnyArg(), "c-2", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	c := &contact.Contact{ID: "c-2", Email: "a@b.com", Category: contact.CategoryLead, Version: 1}
	err := s.UpdateContact(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSignal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO signals`).
		WithArgs(pgxmock.AnyArg(), "call-001", "ai-receptionist", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.SaveSignal(context.Background(), model.Signal{
		SourceID:   "call-001",
		SourceType: model.SourceAIReceptionist,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkProcessed_Failed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE signals SET`).
		WithArgs(false, pgxmock.AnyArg(), "", "", "resolver unavailable", "sig-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkProcessed(context.Background(), "sig-1", signal.Result{
		Err:         "resolver unavailable",
		ProcessedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcquireMergeLease_Held(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leases`).
		WithArgs(MergeLeaseName, "worker-b", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := s.AcquireMergeLease(context.Background(), "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
