package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS metric_definitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    equipment_code TEXT NOT NULL,
    metric_key TEXT NOT NULL,
    value_type TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL DEFAULT 0,
    UNIQUE(equipment_code, metric_key)
);

CREATE TABLE IF NOT EXISTS metric_bindings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    definition_id INTEGER NOT NULL UNIQUE REFERENCES metric_definitions(id),
    source_name TEXT NOT NULL,
    address TEXT NOT NULL,
    bit_index INTEGER,
    xform_scale REAL NOT NULL DEFAULT 1,
    xform_offset REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_bindings_source ON metric_bindings(source_name);

CREATE TABLE IF NOT EXISTS fault_catalog (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    equipment_code TEXT NOT NULL,
    bit_index INTEGER NOT NULL,
    name TEXT NOT NULL,
    marker TEXT NOT NULL DEFAULT 'internal',
    UNIQUE(equipment_code, bit_index)
);

CREATE TABLE IF NOT EXISTS equipment (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    line_id TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    ideal_cycle_time REAL NOT NULL DEFAULT 0,
    good_count_key TEXT NOT NULL DEFAULT '',
    total_count_key TEXT NOT NULL DEFAULT '',
    enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS metric_latest (
    definition_id INTEGER PRIMARY KEY,
    ts INTEGER NOT NULL,
    value_type TEXT NOT NULL,
    vbool INTEGER,
    vint INTEGER,
    vreal REAL,
    vtext TEXT
);

CREATE TABLE IF NOT EXISTS metric_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    definition_id INTEGER NOT NULL,
    ts INTEGER NOT NULL,
    value_type TEXT NOT NULL,
    vbool INTEGER,
    vint INTEGER,
    vreal REAL,
    vtext TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_def_ts ON metric_history(definition_id, ts);

CREATE TABLE IF NOT EXISTS metric_history_chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    definition_id INTEGER NOT NULL,
    start_ts INTEGER NOT NULL,
    end_ts INTEGER NOT NULL,
    row_count INTEGER NOT NULL,
    codec TEXT NOT NULL DEFAULT 'zstd',
    data BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_def_ts ON metric_history_chunks(definition_id, start_ts);

CREATE TABLE IF NOT EXISTS fault_active (
    equipment_code TEXT NOT NULL,
    bit_index INTEGER NOT NULL,
    state INTEGER NOT NULL,
    ts INTEGER NOT NULL,
    PRIMARY KEY (equipment_code, bit_index)
);

CREATE TABLE IF NOT EXISTS fault_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    equipment_code TEXT NOT NULL,
    bit_index INTEGER NOT NULL,
    ts_on INTEGER NOT NULL,
    ts_off INTEGER,
    duration_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_fault_events_equip_ts ON fault_events(equipment_code, ts_on);
CREATE INDEX IF NOT EXISTS idx_fault_events_open ON fault_events(equipment_code, bit_index) WHERE ts_off IS NULL;

CREATE TABLE IF NOT EXISTS oee_calculations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    line_id TEXT NOT NULL,
    equipment_code TEXT NOT NULL,
    ts INTEGER NOT NULL,
    availability REAL NOT NULL,
    performance REAL NOT NULL,
    quality REAL NOT NULL,
    oee REAL NOT NULL,
    planned_time_s REAL NOT NULL,
    runtime_s REAL NOT NULL,
    downtime_s REAL NOT NULL,
    good_parts INTEGER NOT NULL,
    total_parts INTEGER NOT NULL,
    informational INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_oee_line_ts ON oee_calculations(line_id, ts);
CREATE INDEX IF NOT EXISTS idx_oee_equip_ts ON oee_calculations(equipment_code, ts);
`
