package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/model"
	"github.com/clahage/my-clever-crm-sub012/internal/signal"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	phone      TEXT,
	email      TEXT,
	first_name TEXT,
	last_name  TEXT,
	category   TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
	id           TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL,
	source_type  TEXT NOT NULL,
	doc          TEXT NOT NULL,
	processed    INTEGER NOT NULL DEFAULT 0,
	processed_at DATETIME,
	contact_id   TEXT,
	action       TEXT,
	error        TEXT,
	received_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leases (
	name       TEXT PRIMARY KEY,
	holder     TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(first_name, last_name);
CREATE INDEX IF NOT EXISTS idx_contacts_category ON contacts(category);
CREATE INDEX IF NOT EXISTS idx_signals_source ON signals(source_type, source_id);
CREATE INDEX IF NOT EXISTS idx_signals_pending ON signals(processed, received_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateContact(ctx context.Context, c *contact.Contact) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Version = 1

	doc, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, doc, phone, email, first_name, last_name, category, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(doc), c.Phone, c.Email, c.FirstName, c.LastName, string(c.Category), c.Version, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert contact %s", c.ID)
}

func (s *SQLiteStore) UpdateContact(ctx context.Context, c *contact.Contact) error {
	prev := c.Version
	c.Version = prev + 1
	c.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(c)
	if err != nil {
		c.Version = prev
		return eris.Wrap(err, "sqlite: marshal contact")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contacts SET doc = ?, phone = ?, email = ?, first_name = ?, last_name = ?,
		 category = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		string(doc), c.Phone, c.Email, c.FirstName, c.LastName,
		string(c.Category), c.Version, c.UpdatedAt, c.ID, prev,
	)
	if err != nil {
		c.Version = prev
		return eris.Wrapf(err, "sqlite: update contact %s", c.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		c.Version = prev
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		c.Version = prev
		return contact.ErrVersionConflict
	}
	return nil
}

const contactQuery = `SELECT doc FROM contacts`

func (s *SQLiteStore) GetContact(ctx context.Context, id string) (*contact.Contact, error) {
	row := s.db.QueryRowContext(ctx, contactQuery+` WHERE id = ?`, id)
	return scanContact(row)
}

func (s *SQLiteStore) FindByPhone(ctx context.Context, phone string) (*contact.Contact, error) {
	if phone == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		contactQuery+` WHERE phone = ? ORDER BY created_at LIMIT 1`, phone)
	return scanContact(row)
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*contact.Contact, error) {
	if email == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		contactQuery+` WHERE email = ? ORDER BY created_at LIMIT 1`, email)
	return scanContact(row)
}

func (s *SQLiteStore) FindByName(ctx context.Context, firstName, lastName string) (*contact.Contact, error) {
	if firstName == "" || lastName == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		contactQuery+` WHERE first_name = ? COLLATE NOCASE AND last_name = ? COLLATE NOCASE
		 ORDER BY created_at LIMIT 1`,
		firstName, lastName)
	return scanContact(row)
}

func (s *SQLiteStore) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	rows, err := s.db.QueryContext(ctx, contactQuery+` ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var contacts []contact.Contact
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		var c contact.Contact
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

func (s *SQLiteStore) DeleteContact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete contact %s", id)
	}
	return checkRowsAffected(res, "contact", id)
}

func (s *SQLiteStore) SaveSignal(ctx context.Context, sig model.Signal) (string, error) {
	id := uuid.New().String()
	receivedAt := sig.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
		sig.ReceivedAt = receivedAt
	}

	doc, err := json.Marshal(sig)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal signal")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO signals (id, source_id, source_type, doc, processed, received_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		id, sig.SourceID, string(sig.SourceType), string(doc), receivedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert signal %s", sig.SourceID)
	}
	return id, nil
}

const signalColumns = `id, doc, processed, processed_at, contact_id, action, error, received_at`

func (s *SQLiteStore) GetSignal(ctx context.Context, id string) (*model.SignalRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+signalColumns+` FROM signals WHERE id = ?`, id)
	return scanSignal(row)
}

func (s *SQLiteStore) ListPendingSignals(ctx context.Context, limit int) ([]model.SignalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+signalColumns+` FROM signals
		 WHERE processed = 0 AND (error IS NULL OR error = '')
		 ORDER BY received_at LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending signals")
	}
	defer rows.Close()

	var records []model.SignalRecord
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list pending iterate")
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, id string, result signal.Result) error {
	processed := 0
	if result.Err == "" {
		processed = 1
	}
	processedAt := result.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET processed = ?, processed_at = ?, contact_id = ?, action = ?, error = ?
		 WHERE id = ?`,
		processed, processedAt, result.ContactID, result.Action, result.Err, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark signal %s", id)
	}
	return checkRowsAffected(res, "signal", id)
}

func (s *SQLiteStore) AcquireMergeLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leases (name, holder, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE leases.expires_at <= ? OR leases.holder = excluded.holder`,
		MergeLeaseName, holder, now.Add(ttl), now,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: acquire merge lease")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReleaseMergeLease(ctx context.Context, holder string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM leases WHERE name = ? AND holder = ?`, MergeLeaseName, holder)
	return eris.Wrap(err, "sqlite: release merge lease")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanContact(row scannable) (*contact.Contact, error) {
	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan contact")
	}
	var c contact.Contact
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal contact")
	}
	return &c, nil
}

func scanSignal(row scannable) (*model.SignalRecord, error) {
	var rec model.SignalRecord
	var doc string
	var processedAt sql.NullTime
	var contactID, action, errMsg sql.NullString

	err := row.Scan(&rec.ID, &doc, &rec.Processed, &processedAt, &contactID, &action, &errMsg, &rec.ReceivedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan signal")
	}
	if err := json.Unmarshal([]byte(doc), &rec.Signal); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal signal")
	}
	if processedAt.Valid {
		t := processedAt.Time
		rec.ProcessedAt = &t
	}
	rec.ContactID = contactID.String
	rec.Action = action.String
	rec.Error = errMsg.String
	return &rec, nil
}
