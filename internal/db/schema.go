package rewards

// Схема Postgres. Применяется при старте, повторный запуск безопасен
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS brands (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_suspended BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS point_accounts (
		brand_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (brand_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id UUID PRIMARY KEY,
		brand_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('MINT', 'BURN')),
		amount NUMERIC NOT NULL CHECK (amount > 0),
		reason TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		idempotency_key TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_account_idx ON ledger_entries (brand_id, user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_brand_idx ON ledger_entries (brand_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_idempotency_idx ON ledger_entries (brand_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS redemptions (
		id UUID PRIMARY KEY,
		brand_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		campaign_id TEXT,
		points_used NUMERIC NOT NULL CHECK (points_used > 0),
		status TEXT NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS redemptions_account_idx ON redemptions (brand_id, user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS fraud_flags (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		brand_id TEXT,
		severity TEXT NOT NULL,
		reason TEXT NOT NULL,
		details JSONB,
		status TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS fraud_flags_status_idx ON fraud_flags (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS external_users (
		id TEXT PRIMARY KEY,
		brand_id TEXT NOT NULL,
		external_user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (brand_id, external_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS brand_api_keys (
		id UUID PRIMARY KEY,
		brand_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		last_used_at TIMESTAMPTZ
	)`,
}

// Схема SQLite. Время хранится в микросекундах unix, суммы - текстом
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS brands (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_suspended INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS point_accounts (
		brand_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (brand_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		brand_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('MINT', 'BURN')),
		amount TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		idempotency_key TEXT,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_account_idx ON ledger_entries (brand_id, user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS ledger_entries_brand_idx ON ledger_entries (brand_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_idempotency_idx ON ledger_entries (brand_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		brand_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		campaign_id TEXT,
		points_used TEXT NOT NULL,
		status TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS redemptions_account_idx ON redemptions (brand_id, user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS fraud_flags (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		brand_id TEXT,
		severity TEXT NOT NULL,
		reason TEXT NOT NULL,
		details TEXT,
		status TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at INTEGER,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS external_users (
		id TEXT PRIMARY KEY,
		brand_id TEXT NOT NULL,
		external_user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (brand_id, external_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS brand_api_keys (
		id TEXT PRIMARY KEY,
		brand_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		last_used_at INTEGER
	)`,
}
