package postgres

// Schema creates the link graph tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS webpages (
	id            BIGSERIAL PRIMARY KEY,
	url           VARCHAR(2048) NOT NULL UNIQUE,
	title         TEXT NOT NULL DEFAULT '',
	content_hash  VARCHAR(64) NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	first_seen    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_fetched  TIMESTAMPTZ,
	crawl_depth   INTEGER NOT NULL DEFAULT 0,
	status_code   INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	content_type  VARCHAR(255) NOT NULL DEFAULT '',
	collection_id VARCHAR(255) NOT NULL DEFAULT '',
	is_seed       BOOLEAN NOT NULL DEFAULT FALSE,
	is_indexed    BOOLEAN NOT NULL DEFAULT FALSE,
	indexed_at    TIMESTAMPTZ,
	created_by    VARCHAR(255) NOT NULL DEFAULT '',
	updated_by    VARCHAR(255) NOT NULL DEFAULT '',
	api_key_name  VARCHAR(255) NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_webpages_collection ON webpages(collection_id);

CREATE TABLE IF NOT EXISTS webpage_links (
	id         BIGSERIAL PRIMARY KEY,
	source_id  BIGINT NOT NULL REFERENCES webpages(id) ON DELETE CASCADE,
	target_id  BIGINT NOT NULL REFERENCES webpages(id) ON DELETE CASCADE,
	text       TEXT NOT NULL DEFAULT '',
	rel        VARCHAR(255) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_webpage_links_source ON webpage_links(source_id);
`
