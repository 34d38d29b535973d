package db

// Schema for the user-scoped tables. Ids are generated by the application.

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_profiles_table",
		Up: `
			CREATE TABLE IF NOT EXISTS profiles (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL DEFAULT '',
				full_name TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
		Down: `
			DROP TABLE IF EXISTS profiles;
		`,
	},
	{
		Version: 2,
		Name:    "create_ai_notes_table",
		Up: `
			CREATE TABLE IF NOT EXISTS ai_notes (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				title VARCHAR(255) NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_ai_notes_user_created ON ai_notes(user_id, created_at DESC);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_ai_notes_user_created;
			DROP TABLE IF EXISTS ai_notes;
		`,
	},
	{
		Version: 3,
		Name:    "create_link_history_table",
		Up: `
			CREATE TABLE IF NOT EXISTS link_history (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				link TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				content_type TEXT NOT NULL DEFAULT '',
				summary TEXT NOT NULL DEFAULT '',
				analysis_data JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_link_history_user_created ON link_history(user_id, created_at DESC);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_link_history_user_created;
			DROP TABLE IF EXISTS link_history;
		`,
	},
	{
		Version: 4,
		Name:    "create_user_settings_table",
		Up: `
			CREATE TABLE IF NOT EXISTS user_settings (
				user_id TEXT PRIMARY KEY,
				notifications_enabled BOOLEAN NOT NULL DEFAULT FALSE,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_user_settings_notifications ON user_settings(notifications_enabled) WHERE notifications_enabled;
		`,
		Down: `
			DROP INDEX IF EXISTS idx_user_settings_notifications;
			DROP TABLE IF EXISTS user_settings;
		`,
	},
}
