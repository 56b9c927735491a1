package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id               INTEGER PRIMARY KEY AUTOINCREMENT,
    source               TEXT NOT NULL UNIQUE,
    total_lines          INTEGER NOT NULL,
    analyzed_at          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS requests (
    run_id                     INTEGER NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    line_no                    INTEGER NOT NULL,
    timestamp                  TEXT,
    model                      TEXT NOT NULL,
    max_tokens                 INTEGER,
    stream                     INTEGER NOT NULL DEFAULT 1,
    message_count              INTEGER,
    estimated_input_tokens     INTEGER,
    bytes_saved_total          INTEGER,
    whitespace_bytes_saved     INTEGER,
    thinking_bytes_saved       INTEGER,
    tool_result_bytes_saved    INTEGER,
    tool_use_input_bytes_saved INTEGER,
    history_turns_removed      INTEGER,
    history_bytes_saved        INTEGER,
    has_compression            INTEGER NOT NULL DEFAULT 0,
    reduction_ratio            REAL,
    context_usage_percentage   REAL,
    actual_input_tokens        INTEGER,
    PRIMARY KEY (run_id, line_no)
);

CREATE TABLE IF NOT EXISTS upstream_rejections (
    run_id               INTEGER NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    line_no              INTEGER NOT NULL,
    timestamp            TEXT,
    request_body_bytes   INTEGER,
    PRIMARY KEY (run_id, line_no)
);

CREATE TABLE IF NOT EXISTS adaptive_reductions (
    run_id                           INTEGER NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    line_no                          INTEGER NOT NULL,
    timestamp                        TEXT,
    conversation_id                  TEXT,
    initial_bytes                    INTEGER,
    final_bytes                      INTEGER,
    threshold                        INTEGER,
    iters                            INTEGER,
    additional_history_turns_removed INTEGER,
    PRIMARY KEY (run_id, line_no)
);

CREATE TABLE IF NOT EXISTS local_rejections (
    run_id               INTEGER NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    line_no              INTEGER NOT NULL,
    timestamp            TEXT,
    conversation_id      TEXT,
    request_body_bytes   INTEGER,
    image_bytes          INTEGER,
    effective_bytes      INTEGER,
    threshold            INTEGER,
    PRIMARY KEY (run_id, line_no)
);

CREATE INDEX IF NOT EXISTS idx_requests_model ON requests(model);
CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
`
