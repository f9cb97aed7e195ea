// Package export writes periodic overview snapshots. Importing it registers the gob, text
// and clickhouse writer types with the factory.
package export

// TimestampLayout names snapshot directories and rows.
const TimestampLayout = "2006-01-02_15-04-05"
