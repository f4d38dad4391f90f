// Package domain models traffic collision records and the hourly station
// weather they are enriched with.
//
// # Weather Source
//
// Hourly observations come from the Environment and Climate Change Canada (ECCC)
// bulk climate data endpoint:
//
//	https://climate.weather.gc.ca/climate_data/bulk_data_e.html
//
// Hourly data (timeframe=1) is only served one station-month at a time, so a
// multi-year range is assembled from many small CSV downloads. See [StationMonth].
//
// # ECCC CSV Conventions
//
// Columns used (all others are ignored):
//
//	"Date/Time (LST)"      local standard time, e.g. "2022-01-01 14:00"
//	"Temp (°C)"            air temperature
//	"Precip. Amount (mm)"  hourly precipitation
//	"Visibility (km)"      horizontal visibility
//	"Weather"              free-text description, e.g. "Snow,Blowing Snow"
//
// The degree sign in the temperature header is frequently mis-decoded
// ("Temp (Â°C)") and the first header cell may carry a UTF-8 BOM, so columns
// are located by prefix rather than by exact name.
//
// Empty cells and "NA" are missing values. An unknown station ID returns an
// HTML page containing "Station not found" instead of CSV, reported as
// [ErrStationNotFound].
//
// Times are local standard time with no offset. They are kept as wall-clock
// values in a UTC-labelled [time.Time] on both sides of the join so collision
// hours and station hours line up without any zone conversion.
//
// # Gap Filling
//
// The primary station (Pearson Airport, 51459) has outages. Gaps are patched
// field by field from the backup station (City Centre Airport, 48549), then the
// patched series is reindexed to every hour and filled:
//
//	1. forward fill, at most 4 consecutive hours per field
//	2. remaining missing precipitation -> 0.0 (no report means no rain)
//	3. backward fill whatever is still missing from the next valid value
//
// See [Patch] and [Fill].
//
// # Collision Merge Key
//
// Collision records carry the occurrence date (OCC_DATE) and hour (OCC_HOUR) in
// separate columns. The merge key is the date at midnight plus the hour.
// Non-numeric hours count as hour 0, matching the upstream cleaning script. The
// join is a left join: every collision appears exactly once in the output,
// in input order, with empty weather columns when no hour matched.
package domain
