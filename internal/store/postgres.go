package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/clahage/my-clever-crm-sub012/internal/contact"
	"github.com/clahage/my-clever-crm-sub012/internal/db"
	"github.com/clahage/my-clever-crm-sub012/internal/model"
	"github.com/clahage/my-clever-crm-sub012/internal/signal"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the resolver's hot lookup paths.
var preparedStatements = map[string]string{
	"find_by_phone": `SELECT doc FROM contacts WHERE phone = $1 ORDER BY created_at LIMIT 1`,
	"find_by_email": `SELECT doc FROM contacts WHERE email = $1 ORDER BY created_at LIMIT 1`,
	"get_contact":   `SELECT doc FROM contacts WHERE id = $1`,
	"insert_signal": `INSERT INTO signals (id, source_id, source_type, doc, processed, received_at) VALUES ($1, $2, $3, $4, false, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	doc        JSONB NOT NULL,
	phone      TEXT,
	email      TEXT,
	first_name TEXT,
	last_name  TEXT,
	category   TEXT NOT NULL,
	version    BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signals (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_id    TEXT NOT NULL,
	source_type  TEXT NOT NULL,
	doc          JSONB NOT NULL,
	processed    BOOLEAN NOT NULL DEFAULT false,
	processed_at TIMESTAMPTZ,
	contact_id   TEXT,
	action       TEXT,
	error        TEXT,
	received_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leases (
	name       TEXT PRIMARY KEY,
	holder     TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_phone ON contacts(phone);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(lower(first_name), lower(last_name));
CREATE INDEX IF NOT EXISTS idx_contacts_category ON contacts(category);
CREATE INDEX IF NOT EXISTS idx_signals_source ON signals(source_type, source_id);
CREATE INDEX IF NOT EXISTS idx_signals_pending ON signals(processed, received_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateContact(ctx context.Context, c *contact.Contact) error {
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
		return eris.Wrap(err, "postgres: marshal contact")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO contacts (id, doc, phone, email, first_name, last_name, category, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, doc, c.Phone, c.Email, c.FirstName, c.LastName, string(c.Category), c.Version, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert contact %s", c.ID)
}

func (s *PostgresStore) UpdateContact(ctx context.Context, c *contact.Contact) error {
	prev := c.Version
	c.Version = prev + 1
	c.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(c)
	if err != nil {
		c.Version = prev
		return eris.Wrap(err, "postgres: marshal contact")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE contacts SET doc = $1, phone = $2, email = $3, first_name = $4, last_name = $5,
		 category = $6, version = $7, updated_at = $8 WHERE id = $9 AND version = $10`,
		doc, c.Phone, c.Email, c.FirstName, c.LastName,
		string(c.Category), c.Version, c.UpdatedAt, c.ID, prev,
	)
	if err != nil {
		c.Version = prev
		return eris.Wrapf(err, "postgres: update contact %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		c.Version = prev
		return contact.ErrVersionConflict
	}
	return nil
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (*contact.Contact, error) {
	return s.queryContact(ctx, `SELECT doc FROM contacts WHERE id = $1`, id)
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (*contact.Contact, error) {
	if phone == "" {
		return nil, nil
	}
	return s.queryContact(ctx,
		`SELECT doc FROM contacts WHERE phone = $1 ORDER BY created_at LIMIT 1`, phone)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*contact.Contact, error) {
	if email == "" {
		return nil, nil
	}
	return s.queryContact(ctx,
		`SELECT doc FROM contacts WHERE email = $1 ORDER BY created_at LIMIT 1`, email)
}

func (s *PostgresStore) FindByName(ctx context.Context, firstName, lastName string) (*contact.Contact, error) {
	if firstName == "" || lastName == "" {
		return nil, nil
	}
	return s.queryContact(ctx,
		`SELECT doc FROM contacts WHERE lower(first_name) = lower($1) AND lower(last_name) = lower($2)
		 ORDER BY created_at LIMIT 1`,
		firstName, lastName)
}

func (s *PostgresStore) queryContact(ctx context.Context, query string, args ...any) (*contact.Contact, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query contact")
	}
	var c contact.Contact
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal contact")
	}
	return &c, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM contacts ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []contact.Contact
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		var c contact.Contact
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}

func (s *PostgresStore) DeleteContact(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete contact %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("contact not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) SaveSignal(ctx context.Context, sig model.Signal) (string, error) {
	id := uuid.New().String()
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = time.Now().UTC()
	}

	doc, err := json.Marshal(sig)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal signal")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO signals (id, source_id, source_type, doc, processed, received_at)
		 VALUES ($1, $2, $3, $4, false, $5)`,
		id, sig.SourceID, string(sig.SourceType), doc, sig.ReceivedAt,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert signal %s", sig.SourceID)
	}
	return id, nil
}

func (s *PostgresStore) GetSignal(ctx context.Context, id string) (*model.SignalRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, doc, processed, processed_at, contact_id, action, error, received_at
		 FROM signals WHERE id = $1`, id)
	rec, err := scanPGSignal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) ListPendingSignals(ctx context.Context, limit int) ([]model.SignalRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, doc, processed, processed_at, contact_id, action, error, received_at
		 FROM signals WHERE NOT processed AND (error IS NULL OR error = '')
		 ORDER BY received_at LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending signals")
	}
	defer rows.Close()

	var records []model.SignalRecord
	for rows.Next() {
		rec, err := scanPGSignal(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list pending iterate")
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id string, result signal.Result) error {
	processed := result.Err == ""
	processedAt := result.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET processed = $1, processed_at = $2, contact_id = $3, action = $4, error = $5
		 WHERE id = $6`,
		processed, processedAt, result.ContactID, result.Action, result.Err, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark signal %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("signal not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) AcquireMergeLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO leases (name, holder, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE leases.expires_at <= $4 OR leases.holder = excluded.holder`,
		MergeLeaseName, holder, now.Add(ttl), now,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: acquire merge lease")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ReleaseMergeLease(ctx context.Context, holder string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM leases WHERE name = $1 AND holder = $2`, MergeLeaseName, holder)
	return eris.Wrap(err, "postgres: release merge lease")
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanPGSignal(row pgScannable) (*model.SignalRecord, error) {
	var rec model.SignalRecord
	var doc []byte
	var processedAt *time.Time
	var contactID, action, errMsg *string

	err := row.Scan(&rec.ID, &doc, &rec.Processed, &processedAt, &contactID, &action, &errMsg, &rec.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan signal")
	}
	if err := json.Unmarshal(doc, &rec.Signal); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal signal")
	}
	rec.ProcessedAt = processedAt
	if contactID != nil {
		rec.ContactID = *contactID
	}
	if action != nil {
		rec.Action = *action
	}
	if errMsg != nil {
		rec.Error = *errMsg
	}
	return &rec, nil
}
