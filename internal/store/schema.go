package store

// migration is one additive schema step. Migrations are applied in order at
// Open; each runs in its own transaction and is recorded in schema_version.
type migration struct {
	version int
	up      string
}

var migrations = []migration{
	{version: 1, up: schemaV1},
	{version: 2, up: schemaV2},
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS folders (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

-- Synthetic root folder: ID 0, empty path.
INSERT INTO folders (id, path, name)
SELECT 0, '', ''
WHERE NOT EXISTS (SELECT 1 FROM folders WHERE id = 0);

CREATE TABLE IF NOT EXISTS documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	folder_id   INTEGER NOT NULL DEFAULT 0,
	modified_at DATETIME,
	tags        TEXT NOT NULL DEFAULT '[]',
	token_count INTEGER NOT NULL DEFAULT 0,
	checksum    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_documents_folder ON documents(folder_id);
CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);

CREATE TABLE IF NOT EXISTS postings (
	term        TEXT NOT NULL,
	document_id INTEGER NOT NULL,
	folder_id   INTEGER NOT NULL DEFAULT 0,
	source      TEXT NOT NULL,
	frequency   INTEGER NOT NULL DEFAULT 0,
	positions   TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (term, document_id, source)
);

CREATE INDEX IF NOT EXISTS idx_postings_document ON postings(document_id);
CREATE INDEX IF NOT EXISTS idx_postings_folder ON postings(folder_id);
`

// schemaV2 adds the properties table. Additive only: existing data is
// untouched and the new table starts empty.
const schemaV2 = `
CREATE TABLE IF NOT EXISTS properties (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL,
	name        TEXT NOT NULL,
	value       TEXT NOT NULL DEFAULT '',
	num_value   REAL
);

CREATE INDEX IF NOT EXISTS idx_properties_document ON properties(document_id);
CREATE INDEX IF NOT EXISTS idx_properties_name_value ON properties(name, value);
CREATE INDEX IF NOT EXISTS idx_properties_name_num ON properties(name, num_value);
`
