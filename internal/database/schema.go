package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profiles (
	id                   TEXT PRIMARY KEY,
	email                TEXT NOT NULL,
	credits              INTEGER NOT NULL DEFAULT 25 CHECK (credits >= 0),
	current_plan         TEXT NOT NULL DEFAULT 'free',
	has_purchased_app    BOOLEAN NOT NULL DEFAULT FALSE,
	cloud_sync_enabled   BOOLEAN NOT NULL DEFAULT FALSE,
	auto_cloud_sync      BOOLEAN NOT NULL DEFAULT FALSE,
	deletion_policy_days INTEGER NOT NULL DEFAULT 0 CHECK (deletion_policy_days >= 0),
	plan_selected        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_profiles_retention
	ON profiles (deletion_policy_days)
	WHERE deletion_policy_days > 0;

CREATE TABLE IF NOT EXISTS gift_codes (
	code        TEXT PRIMARY KEY,
	credits     INTEGER NOT NULL CHECK (credits > 0),
	redeemed_by TEXT REFERENCES profiles (id),
	redeemed_at TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
