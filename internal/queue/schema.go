package queue

const schema = `
CREATE TABLE IF NOT EXISTS export_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_name TEXT NOT NULL DEFAULT '',
    batch_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    progress_stage TEXT NOT NULL DEFAULT '',
    progress_percent REAL NOT NULL DEFAULT 0,
    progress_message TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    print_path TEXT NOT NULL DEFAULT '',
    mockup_path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs (status, id);
`

const itemColumns = `id, source_name, batch_id, status, created_at, updated_at,
    progress_stage, progress_percent, progress_message, error_message,
    print_path, mockup_path`
