package db

type migration struct {
	version int
	name    string
	up      string
}

var migrations = []migration{
	{
		version: 1,
		name:    "themes",
		up: `
			CREATE TABLE themes (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				mode TEXT NOT NULL DEFAULT '',
				builtin INTEGER NOT NULL DEFAULT 0,
				colors_json TEXT NOT NULL DEFAULT '[]',
				assignments_json TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
			CREATE INDEX idx_themes_name ON themes(name);
		`,
	},
	{
		version: 2,
		name:    "settings",
		up: `
			CREATE TABLE settings (
				key TEXT PRIMARY KEY,
				value_json TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
		`,
	},
	{
		version: 3,
		name:    "events",
		up: `
			CREATE TABLE events (
				id TEXT PRIMARY KEY,
				timestamp TEXT NOT NULL,
				type TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				payload_json TEXT,
				metadata_json TEXT
			);
			CREATE INDEX idx_events_entity ON events(entity_type, entity_id);
			CREATE INDEX idx_events_timestamp ON events(timestamp);
		`,
	},
}
