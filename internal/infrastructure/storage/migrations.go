package storage

// Migration is one schema step. Versions must be strictly increasing.
type Migration struct {
	Version    int
	Statements []string
}

const versionTableDDL = `CREATE TABLE IF NOT EXISTS schema_version (
    id      SMALLINT NOT NULL PRIMARY KEY,
    version INTEGER  NOT NULL
)`

var postgresMigrations = []Migration{
	{
		Version: 1,
		Statements: []string{
			`CREATE TABLE items (
                id           BIGSERIAL PRIMARY KEY,
                digest       BYTEA     NOT NULL,
                permalink    TEXT      NOT NULL,
                source_url   TEXT      NOT NULL,
                content_type TEXT      NOT NULL,
                state        TEXT      NOT NULL DEFAULT 'pending',
                CONSTRAINT items_digest_key UNIQUE (digest),
                CONSTRAINT items_digest_len CHECK (octet_length(digest) = 32),
                CONSTRAINT items_state_check CHECK (state IN ('pending', 'verified', 'banned'))
            )`,
		},
	},
	{
		Version: 2,
		Statements: []string{
			`CREATE INDEX items_state_id_idx ON items (state, id)`,
		},
	},
	{
		Version: 3,
		Statements: []string{
			`ALTER TABLE items ADD COLUMN channel TEXT NOT NULL DEFAULT ''`,
		},
	},
}

var sqliteMigrations = []Migration{
	{
		Version: 1,
		Statements: []string{
			`CREATE TABLE items (
                id           INTEGER PRIMARY KEY AUTOINCREMENT,
                digest       BLOB    NOT NULL UNIQUE CHECK (length(digest) = 32),
                permalink    TEXT    NOT NULL,
                source_url   TEXT    NOT NULL,
                content_type TEXT    NOT NULL,
                state        TEXT    NOT NULL DEFAULT 'pending'
                             CHECK (state IN ('pending', 'verified', 'banned'))
            )`,
		},
	},
	{
		Version: 2,
		Statements: []string{
			`CREATE INDEX items_state_id_idx ON items (state, id)`,
		},
	},
	{
		Version: 3,
		Statements: []string{
			`ALTER TABLE items ADD COLUMN channel TEXT NOT NULL DEFAULT ''`,
		},
	},
}
