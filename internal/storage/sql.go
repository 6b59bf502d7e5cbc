package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_buckets_epoch ON buckets (run_id, epoch);
CREATE INDEX IF NOT EXISTS idx_runs_start_time ON runs (start_time);`

const (
	insertRunSQL = `
INSERT INTO runs (id,
                  source,
                  start_time)
VALUES (?, ?, ?)`

	selectRunSQL = `
SELECT 
    id, 
    source, 
    start_time 
FROM runs 
WHERE 
    id = ?`

	selectRunsSQL = `
SELECT 
    id, 
    source, 
    start_time 
FROM runs
ORDER BY start_time`

	insertMetadataSQL = `
INSERT OR REPLACE INTO metadata (run_id,
                                 device_id,
                                 session_id,
                                 logging_start,
                                 logging_end,
                                 last_clear,
                                 last_change,
                                 capacity,
                                 sampling_rate,
                                 firmware_version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectMetadataSQL = `
SELECT 
    run_id, 
    device_id, 
    session_id, 
    logging_start, 
    logging_end, 
    last_clear, 
    last_change, 
    capacity, 
    sampling_rate, 
    firmware_version 
FROM metadata 
WHERE 
    run_id = ?`

	deleteAnnotationsSQL = `
DELETE FROM annotations WHERE run_id = ?`

	insertAnnotationSQL = `
INSERT INTO annotations (run_id,
                         position,
                         name,
                         value,
                         time)
VALUES `

	selectAnnotationsSQL = `
SELECT 
    name, 
    value, 
    time 
FROM annotations 
WHERE 
    run_id = ? 
ORDER BY position`

	insertBucketSQL = `
INSERT OR REPLACE INTO buckets (run_id,
                                width_ms,
                                baselined,
                                idx,
                                epoch,
                                count,
                                x_mean, x_ptp, x_rms, x_stddev,
                                y_mean, y_ptp, y_rms, y_stddev,
                                z_mean, z_ptp, z_rms, z_stddev,
                                tot_mean, tot_ptp, tot_rms, tot_stddev)
VALUES `

	selectBucketsSQL = `
SELECT 
    width_ms,
    baselined,
    idx,
    epoch,
    count,
    x_mean, x_ptp, x_rms, x_stddev,
    y_mean, y_ptp, y_rms, y_stddev,
    z_mean, z_ptp, z_rms, z_stddev,
    tot_mean, tot_ptp, tot_rms, tot_stddev
FROM buckets`
)

// bucketColumns is the number of values bound per bucket row
const bucketColumns = 22
