package storage

// Schema is the SQL schema for the knowledge database. Every statement is
// idempotent so it runs on each open.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'active'
                CHECK(status IN ('active', 'archived')),
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

-- seq is the stable rowid the full-text index points at.
CREATE TABLE IF NOT EXISTS entities (
    seq              INTEGER PRIMARY KEY AUTOINCREMENT,
    id               TEXT NOT NULL UNIQUE,
    entity_type      TEXT NOT NULL,
    external_id      TEXT NOT NULL,
    title            TEXT NOT NULL DEFAULT '',
    content          TEXT NOT NULL DEFAULT '',
    metadata         TEXT NOT NULL DEFAULT '{}',
    platform_source  TEXT NOT NULL DEFAULT '',
    source_event_ids TEXT NOT NULL DEFAULT '[]',
    participants     TEXT NOT NULL DEFAULT '[]',
    embedding        BLOB NULL,
    project_id       TEXT NULL,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    UNIQUE (entity_type, external_id)
);

-- Edges may reference entities that do not exist (yet), so no foreign keys.
CREATE TABLE IF NOT EXISTS relationships (
    id                TEXT PRIMARY KEY,
    source_entity_id  TEXT NOT NULL,
    target_entity_id  TEXT NOT NULL,
    relationship_type TEXT NOT NULL,
    strength          REAL NOT NULL DEFAULT 1.0 CHECK(strength >= 0),
    metadata          TEXT NOT NULL DEFAULT '{}',
    created_at        TEXT NOT NULL,
    UNIQUE (source_entity_id, target_entity_id, relationship_type)
);

CREATE TABLE IF NOT EXISTS decision_records (
    decision_id  TEXT PRIMARY KEY,
    entity_id    TEXT NOT NULL,
    project_id   TEXT NULL,
    title        TEXT NOT NULL,
    context      TEXT NOT NULL DEFAULT '',
    decision     TEXT NOT NULL DEFAULT '',
    consequences TEXT NOT NULL DEFAULT '',
    alternatives TEXT NOT NULL DEFAULT '[]',
    status       TEXT NOT NULL DEFAULT '',
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS discussion_summaries (
    summary_id    TEXT PRIMARY KEY,
    entity_id     TEXT NOT NULL,
    project_id    TEXT NULL,
    platform      TEXT NOT NULL DEFAULT '',
    channel       TEXT NOT NULL DEFAULT '',
    summary       TEXT NOT NULL,
    key_points    TEXT NOT NULL DEFAULT '[]',
    decisions     TEXT NOT NULL DEFAULT '[]',
    participants  TEXT NOT NULL DEFAULT '[]',
    message_count INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feature_contexts (
    feature_id   TEXT PRIMARY KEY,
    entity_id    TEXT NOT NULL,
    project_id   TEXT NULL,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    files        TEXT NOT NULL DEFAULT '[]',
    contributors TEXT NOT NULL DEFAULT '[]',
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS file_context_history (
    context_id     TEXT PRIMARY KEY,
    entity_id      TEXT NOT NULL,
    project_id     TEXT NULL,
    file_path      TEXT NOT NULL,
    change_type    TEXT NOT NULL DEFAULT '',
    change_summary TEXT NOT NULL DEFAULT '',
    commit_sha     TEXT NOT NULL DEFAULT '',
    author         TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
    title,
    content,
    content='entities',
    content_rowid='seq'
);

CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_entities_created ON entities(created_at);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_entity_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_entity_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(relationship_type);
CREATE INDEX IF NOT EXISTS idx_decision_records_entity ON decision_records(entity_id);
CREATE INDEX IF NOT EXISTS idx_discussion_summaries_entity ON discussion_summaries(entity_id);
CREATE INDEX IF NOT EXISTS idx_feature_contexts_entity ON feature_contexts(entity_id);
CREATE INDEX IF NOT EXISTS idx_file_context_entity ON file_context_history(entity_id);
CREATE INDEX IF NOT EXISTS idx_file_context_path ON file_context_history(file_path, created_at);
`

// Triggers keep entities_fts in step with the external-content table.
const Triggers = `
CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
    INSERT INTO entities_fts(rowid, title, content) VALUES (new.seq, new.title, new.content);
END;
CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
    INSERT INTO entities_fts(entities_fts, rowid, title, content) VALUES('delete', old.seq, old.title, old.content);
END;
CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE ON entities BEGIN
    INSERT INTO entities_fts(entities_fts, rowid, title, content) VALUES('delete', old.seq, old.title, old.content);
    INSERT INTO entities_fts(rowid, title, content) VALUES (new.seq, new.title, new.content);
END;
`

// dsnPragmas configures SQLite for concurrent readers and a single writer.
// busy_timeout comes first so the later pragmas already wait on a locked
// database. Transactions start IMMEDIATE: they take the write lock up front
// and queue on busy_timeout instead of failing a lock upgrade.
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=cache_size(-64000)&_txlock=immediate"
