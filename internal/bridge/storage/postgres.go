package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/autopeer-io/voicelink/internal/bridge/core"
	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/pkg/log"
	"github.com/autopeer-io/voicelink/pkg/options"
)

const (
	defaultShadowTable  = "device_shadows"
	defaultAccountTable = "accounts"
	defaultLinkTable    = "account_links"
)

var _ core.ShadowStore = (*Postgres)(nil)

// Postgres stores shadows and accounts in PostgreSQL.
// Shadow state is a JSONB column merged in place, so concurrent patches never
// lose each other's fields.
type Postgres struct {
	db           *sql.DB
	queryTimeout time.Duration

	shadowTable  string
	accountTable string
	linkTable    string
}

// PostgresOption configures the store.
type PostgresOption func(*Postgres)

// WithTablePrefix prefixes every table name, e.g. for side-by-side test schemas.
func WithTablePrefix(prefix string) PostgresOption {
	return func(p *Postgres) {
		if prefix != "" {
			p.shadowTable = prefix + defaultShadowTable
			p.accountTable = prefix + defaultAccountTable
			p.linkTable = prefix + defaultLinkTable
		}
	}
}

// OpenPostgres opens a connection pool and, if configured, creates the schema.
func OpenPostgres(ctx context.Context, opts *options.PostgresOptions, pgOpts ...PostgresOption) (*Postgres, error) {
	db, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	p := NewPostgres(db, opts.QueryTimeout, pgOpts...)

	pingCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if opts.Migrate {
		if err := p.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	log.Info("Postgres store connected", "shadows", p.shadowTable, "accounts", p.accountTable)
	return p, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(db *sql.DB, queryTimeout time.Duration, opts ...PostgresOption) *Postgres {
	p := &Postgres{
		db:           db,
		queryTimeout: queryTimeout,
		shadowTable:  defaultShadowTable,
		accountTable: defaultAccountTable,
		linkTable:    defaultLinkTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.queryTimeout)
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	username           TEXT NOT NULL,
	endpoint_id        TEXT NOT NULL,
	friendly_name      TEXT NOT NULL DEFAULT '',
	capabilities       JSONB NOT NULL DEFAULT '[]'::jsonb,
	state              JSONB NOT NULL DEFAULT '{}'::jsonb,
	report_state       BOOLEAN NOT NULL DEFAULT FALSE,
	display_categories JSONB NOT NULL DEFAULT '[]'::jsonb,
	attributes         JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (username, endpoint_id)
)`, p.shadowTable),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	username TEXT PRIMARY KEY,
	user_id  TEXT NOT NULL DEFAULT ''
)`, p.accountTable),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	username      TEXT NOT NULL REFERENCES %s (username) ON DELETE CASCADE,
	integration   TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	linked_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (username, integration)
)`, p.linkTable, p.accountTable),
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Find(ctx context.Context, username, endpointID string) (*model.Shadow, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
SELECT friendly_name, capabilities, state, report_state, display_categories, attributes
FROM %s
WHERE username = $1 AND endpoint_id = $2`, p.shadowTable)

	var (
		capabilities, state, categories, attributes []byte
	)
	shadow := &model.Shadow{Username: username, EndpointID: endpointID}

	row := p.db.QueryRowContext(ctx, query, username, endpointID)
	if err := row.Scan(&shadow.FriendlyName, &capabilities, &state, &shadow.ReportState, &categories, &attributes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}

	for _, col := range []struct {
		data []byte
		dst  any
	}{
		{capabilities, &shadow.Capabilities},
		{state, &shadow.State},
		{categories, &shadow.DisplayCategories},
		{attributes, &shadow.Attributes},
	} {
		if err := json.Unmarshal(col.data, col.dst); err != nil {
			return nil, fmt.Errorf("failed to decode shadow %s/%s: %w", username, endpointID, err)
		}
	}
	if shadow.State == nil {
		shadow.State = map[string]any{}
	}
	return shadow, nil
}

// MergeState applies the patch in a single statement.
func (p *Postgres) MergeState(ctx context.Context, username, endpointID string, patch model.StatePatch) error {
	set, err := json.Marshal(patch.Set)
	if err != nil {
		return err
	}
	if patch.Set == nil {
		set = []byte("{}")
	}
	unset := patch.Unset
	if unset == nil {
		unset = []string{}
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
UPDATE %s
SET state = (state || $3::jsonb) - $4::text[], updated_at = now()
WHERE username = $1 AND endpoint_id = $2`, p.shadowTable)

	res, err := p.db.ExecContext(ctx, query, username, endpointID, string(set), unset)
	if err != nil {
		return fmt.Errorf("failed to merge state of %s/%s: %w", username, endpointID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Put upserts a whole shadow.
func (p *Postgres) Put(ctx context.Context, shadow *model.Shadow) error {
	cols := make([]string, 0, 4)
	for _, v := range []any{shadow.Capabilities, shadow.State, shadow.DisplayCategories, shadow.Attributes} {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		cols = append(cols, string(data))
	}
	if shadow.State == nil {
		cols[1] = "{}"
	}
	if shadow.Attributes == nil {
		cols[3] = "{}"
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`
INSERT INTO %s (username, endpoint_id, friendly_name, capabilities, state, report_state, display_categories, attributes)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7::jsonb, $8::jsonb)
ON CONFLICT (username, endpoint_id) DO UPDATE SET
	friendly_name = EXCLUDED.friendly_name,
	capabilities = EXCLUDED.capabilities,
	state = EXCLUDED.state,
	report_state = EXCLUDED.report_state,
	display_categories = EXCLUDED.display_categories,
	attributes = EXCLUDED.attributes,
	updated_at = now()`, p.shadowTable)

	_, err := p.db.ExecContext(ctx, query,
		shadow.Username, shadow.EndpointID, shadow.FriendlyName,
		cols[0], cols[1], shadow.ReportState, cols[2], cols[3])
	return err
}

// PostgresAccounts exposes the account half of a Postgres store.
type PostgresAccounts struct {
	*Postgres
}

var _ core.AccountStore = PostgresAccounts{}

func (a PostgresAccounts) Find(ctx context.Context, username string) (*model.Account, error) {
	return a.FindAccount(ctx, username)
}

func (a PostgresAccounts) Put(ctx context.Context, account *model.Account) error {
	return a.PutAccount(ctx, account)
}

// FindAccount loads an account with its links.
func (p *Postgres) FindAccount(ctx context.Context, username string) (*model.Account, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	account := &model.Account{Username: username, Links: map[string]model.Link{}}

	query := fmt.Sprintf(`SELECT user_id FROM %s WHERE username = $1`, p.accountTable)
	if err := p.db.QueryRowContext(ctx, query, username).Scan(&account.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}

	query = fmt.Sprintf(`SELECT integration, refresh_token, linked_at FROM %s WHERE username = $1`, p.linkTable)
	rows, err := p.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			integration string
			link        model.Link
		)
		if err := rows.Scan(&integration, &link.RefreshToken, &link.LinkedAt); err != nil {
			return nil, err
		}
		account.Links[integration] = link
	}
	return account, rows.Err()
}

// PutAccount upserts an account and replaces its links.
func (p *Postgres) PutAccount(ctx context.Context, account *model.Account) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
INSERT INTO %s (username, user_id) VALUES ($1, $2)
ON CONFLICT (username) DO UPDATE SET user_id = EXCLUDED.user_id`, p.accountTable)
	if _, err := tx.ExecContext(ctx, query, account.Username, account.UserID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE username = $1`, p.linkTable), account.Username); err != nil {
		return err
	}

	query = fmt.Sprintf(`INSERT INTO %s (username, integration, refresh_token, linked_at) VALUES ($1, $2, $3, $4)`, p.linkTable)
	for integration, link := range account.Links {
		linkedAt := link.LinkedAt
		if linkedAt.IsZero() {
			linkedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query, account.Username, integration, link.RefreshToken, linkedAt.UTC()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Unlink removes one integration link. Removing an absent link is not an error.
func (p *Postgres) Unlink(ctx context.Context, username, integration string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE username = $1 AND integration = $2`, p.linkTable)
	_, err := p.db.ExecContext(ctx, query, username, integration)
	return err
}
