package store

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS metric_definitions (
    id BIGSERIAL PRIMARY KEY,
    equipment_code TEXT NOT NULL,
    metric_key TEXT NOT NULL,
    value_type TEXT NOT NULL,
    unit TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL DEFAULT 0,
    UNIQUE(equipment_code, metric_key)
);

CREATE TABLE IF NOT EXISTS metric_bindings (
    id BIGSERIAL PRIMARY KEY,
    definition_id BIGINT NOT NULL UNIQUE REFERENCES metric_definitions(id),
    source_name TEXT NOT NULL,
    address TEXT NOT NULL,
    bit_index INTEGER,
    xform_scale DOUBLE PRECISION NOT NULL DEFAULT 1,
    xform_offset DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_bindings_source ON metric_bindings(source_name);

CREATE TABLE IF NOT EXISTS fault_catalog (
    id BIGSERIAL PRIMARY KEY,
    equipment_code TEXT NOT NULL,
    bit_index INTEGER NOT NULL,
    name TEXT NOT NULL,
    marker TEXT NOT NULL DEFAULT 'internal',
    UNIQUE(equipment_code, bit_index)
);

CREATE TABLE IF NOT EXISTS equipment (
    id BIGSERIAL PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    line_id TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    ideal_cycle_time DOUBLE PRECISION NOT NULL DEFAULT 0,
    good_count_key TEXT NOT NULL DEFAULT '',
    total_count_key TEXT NOT NULL DEFAULT '',
    enabled SMALLINT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS metric_latest (
    definition_id BIGINT PRIMARY KEY,
    ts BIGINT NOT NULL,
    value_type TEXT NOT NULL,
    vbool SMALLINT,
    vint BIGINT,
    vreal DOUBLE PRECISION,
    vtext TEXT
);

CREATE TABLE IF NOT EXISTS metric_history (
    id BIGSERIAL PRIMARY KEY,
    definition_id BIGINT NOT NULL,
    ts BIGINT NOT NULL,
    value_type TEXT NOT NULL,
    vbool SMALLINT,
    vint BIGINT,
    vreal DOUBLE PRECISION,
    vtext TEXT
);
CREATE INDEX IF NOT EXISTS idx_history_def_ts ON metric_history(definition_id, ts);

CREATE TABLE IF NOT EXISTS metric_history_chunks (
    id BIGSERIAL PRIMARY KEY,
    definition_id BIGINT NOT NULL,
    start_ts BIGINT NOT NULL,
    end_ts BIGINT NOT NULL,
    row_count INTEGER NOT NULL,
    codec TEXT NOT NULL DEFAULT 'zstd',
    data BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_def_ts ON metric_history_chunks(definition_id, start_ts);

CREATE TABLE IF NOT EXISTS fault_active (
    equipment_code TEXT NOT NULL,
    bit_index INTEGER NOT NULL,
    state SMALLINT NOT NULL,
    ts BIGINT NOT NULL,
    PRIMARY KEY (equipment_code, bit_index)
);

CREATE TABLE IF NOT EXISTS fault_events (
    id BIGSERIAL PRIMARY KEY,
    equipment_code TEXT NOT NULL,
    bit_index INTEGER NOT NULL,
    ts_on BIGINT NOT NULL,
    ts_off BIGINT,
    duration_ms BIGINT
);
CREATE INDEX IF NOT EXISTS idx_fault_events_equip_ts ON fault_events(equipment_code, ts_on);
CREATE INDEX IF NOT EXISTS idx_fault_events_open ON fault_events(equipment_code, bit_index) WHERE ts_off IS NULL;

CREATE TABLE IF NOT EXISTS oee_calculations (
    id BIGSERIAL PRIMARY KEY,
    line_id TEXT NOT NULL,
    equipment_code TEXT NOT NULL,
    ts BIGINT NOT NULL,
    availability DOUBLE PRECISION NOT NULL,
    performance DOUBLE PRECISION NOT NULL,
    quality DOUBLE PRECISION NOT NULL,
    oee DOUBLE PRECISION NOT NULL,
    planned_time_s DOUBLE PRECISION NOT NULL,
    runtime_s DOUBLE PRECISION NOT NULL,
    downtime_s DOUBLE PRECISION NOT NULL,
    good_parts BIGINT NOT NULL,
    total_parts BIGINT NOT NULL,
    informational SMALLINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_oee_line_ts ON oee_calculations(line_id, ts);
CREATE INDEX IF NOT EXISTS idx_oee_equip_ts ON oee_calculations(equipment_code, ts);
`
