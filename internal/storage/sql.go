package storage

import (
	_ "embed"
)

const (
	insertMeasurementSQL = `
INSERT INTO measurements (external_id,
                          type,
                          created_at,
                          metadata)
VALUES (?, ?, CURRENT_TIMESTAMP, ?)`

	selectMeasurementSQL = `
SELECT 
    id, 
    external_id, 
    type, 
    created_at, 
    metadata 
FROM measurements 
WHERE 
    id = ?`

	selectMeasurementsSQL = `
SELECT 
    id, 
    external_id, 
    type, 
    created_at, 
    metadata 
FROM measurements
ORDER BY created_at, id`

	insertSampleSQL = `
INSERT INTO samples (measurement_id,
                     timestamp,
                     frequency,
                     level,
                     bearing,
                     unit)
VALUES `

	selectSamplesSQL = `
SELECT 
    timestamp, 
    frequency, 
    level, 
    bearing, 
    unit
FROM samples
WHERE 
    measurement_id = ?`

	insertBearingSQL = `
INSERT INTO df_results (measurement_id,
                        station_name,
                        latitude,
                        longitude,
                        bearing,
                        signal_level,
                        confidence)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectBearingsSQL = `
SELECT 
    station_name, 
    latitude, 
    longitude, 
    bearing, 
    signal_level, 
    confidence
FROM df_results
WHERE 
    measurement_id = ?
ORDER BY id`

	insertTimeDifferenceSQL = `
INSERT INTO tdoa_results (measurement_id,
                          station1,
                          station2,
                          latitude1,
                          longitude1,
                          latitude2,
                          longitude2,
                          time_diff,
                          distance_diff,
                          confidence)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectTimeDifferencesSQL = `
SELECT 
    station1, 
    station2, 
    latitude1, 
    longitude1, 
    latitude2, 
    longitude2, 
    time_diff, 
    distance_diff, 
    confidence
FROM tdoa_results
WHERE 
    measurement_id = ?
ORDER BY id`

	insertEstimateSQL = `
INSERT INTO estimates (measurement_id,
                       created_at,
                       method,
                       solver,
                       latitude,
                       longitude,
                       accuracy,
                       contributing,
                       low_confidence)
VALUES (?, CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?)`

	selectEstimatesSQL = `
SELECT 
    method, 
    solver, 
    latitude, 
    longitude, 
    accuracy, 
    contributing, 
    low_confidence
FROM estimates
WHERE 
    measurement_id = ?
ORDER BY created_at, id`
)

//go:embed schema.sql
var initSchemaSQL string
