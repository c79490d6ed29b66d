package database

type migration struct {
	version int
	name    string
	stmt    string
}

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS warden_migrations (
	version    INT PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const schemaProfaneWords = `
CREATE TABLE IF NOT EXISTS profane_words (
	id   SERIAL PRIMARY KEY,
	word TEXT UNIQUE
);
`

const schemaInfractions = `
CREATE SCHEMA IF NOT EXISTS infractions;

CREATE TABLE IF NOT EXISTS infractions.time (
	guild_id BIGINT UNIQUE,
	type     TEXT,
	time     INT
);

CREATE TABLE IF NOT EXISTS infractions.settings (
	guild_id                BIGINT UNIQUE,
	notification_channel_id BIGINT,
	moderators              BIGINT[] DEFAULT '{}',
	moderator_role_ids      BIGINT[] DEFAULT '{}',
	valid_links             TEXT[] DEFAULT '{}',
	ignored_channel_ids     BIGINT[] DEFAULT '{}'
);
`

// arrays are never written as NULL, so the columns can carry the constraint
const schemaSettingsNotNull = `
UPDATE infractions.settings SET moderators = '{}' WHERE moderators IS NULL;
UPDATE infractions.settings SET moderator_role_ids = '{}' WHERE moderator_role_ids IS NULL;
UPDATE infractions.settings SET valid_links = '{}' WHERE valid_links IS NULL;
UPDATE infractions.settings SET ignored_channel_ids = '{}' WHERE ignored_channel_ids IS NULL;

ALTER TABLE infractions.settings
	ALTER COLUMN moderators SET NOT NULL,
	ALTER COLUMN moderator_role_ids SET NOT NULL,
	ALTER COLUMN valid_links SET NOT NULL,
	ALTER COLUMN ignored_channel_ids SET NOT NULL;
`

// migrations are applied in order and recorded in warden_migrations. Never
// edit an applied entry; append a new one.
var migrations = []migration{
	{1, "profane words", schemaProfaneWords},
	{2, "infractions schema", schemaInfractions},
	{3, "settings arrays not null", schemaSettingsNotNull},
}

// advisory lock key held while migrating, so concurrent processes serialize
const migrationLockKey = 0x77617264656e
