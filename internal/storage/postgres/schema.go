package postgres

// Schema is the DDL for the ingestion dataset. Statements are
// idempotent so Migrate can run at every boot.
const Schema = `
CREATE TABLE IF NOT EXISTS shelters (
	id          UUID PRIMARY KEY,
	source      TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	email       TEXT,
	phone       TEXT,
	website     TEXT,
	address     TEXT,
	city        TEXT,
	state       TEXT,
	zip         TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, source_id)
);

CREATE TABLE IF NOT EXISTS pets (
	id               UUID PRIMARY KEY,
	source           TEXT NOT NULL,
	source_id        TEXT NOT NULL,
	source_url       TEXT NOT NULL,
	shelter_id       UUID REFERENCES shelters (id),
	name             TEXT NOT NULL,
	species          TEXT NOT NULL,
	breed            TEXT,
	breed_secondary  TEXT,
	age              TEXT,
	size             TEXT,
	gender           TEXT NOT NULL,
	color            TEXT,
	description      TEXT,
	photos           TEXT[] NOT NULL DEFAULT '{}',
	location_city    TEXT,
	location_state   TEXT,
	location_zip     TEXT,
	shelter_name     TEXT,
	shelter_email    TEXT,
	shelter_phone    TEXT,
	good_with_kids   BOOLEAN,
	good_with_dogs   BOOLEAN,
	good_with_cats   BOOLEAN,
	house_trained    BOOLEAN,
	spayed_neutered  BOOLEAN,
	special_needs    BOOLEAN,
	adoption_fee     NUMERIC(10,2),
	status           TEXT NOT NULL,
	first_seen_at    TIMESTAMPTZ NOT NULL,
	last_seen_at     TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (source, source_id)
);

CREATE INDEX IF NOT EXISTS pets_staleness_idx
	ON pets (source, status, last_seen_at);

CREATE TABLE IF NOT EXISTS run_logs (
	id            UUID PRIMARY KEY,
	source        TEXT NOT NULL,
	status        TEXT NOT NULL,
	triggered_by  TEXT NOT NULL,
	started_at    TIMESTAMPTZ,
	completed_at  TIMESTAMPTZ,
	pets_found    INT NOT NULL DEFAULT 0,
	pets_added    INT NOT NULL DEFAULT 0,
	pets_updated  INT NOT NULL DEFAULT 0,
	pets_removed  INT NOT NULL DEFAULT 0,
	error_count   INT NOT NULL DEFAULT 0,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS run_logs_source_idx
	ON run_logs (source, created_at DESC);

CREATE TABLE IF NOT EXISTS run_errors (
	id            BIGSERIAL PRIMARY KEY,
	run_log_id    UUID REFERENCES run_logs (id),
	source        TEXT NOT NULL,
	error_type    TEXT NOT NULL,
	error_message TEXT NOT NULL,
	url           TEXT,
	detail        TEXT,
	occurred_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
