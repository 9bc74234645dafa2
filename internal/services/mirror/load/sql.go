package load

import (
	"fmt"
	"strings"
)

// itemColumns is the canonical column order shared by the schema and the merge insert
var itemColumns = []struct {
	name string
	typ  string
	expr string
}{
	{"id", "UInt64", "JSONExtractUInt(doc, 'id')"},
	{"deleted", "UInt8", "JSONExtractBool(doc, 'deleted')"},
	{"type", "LowCardinality(String)", "JSONExtractString(doc, 'type')"},
	{"`by`", "String", "JSONExtractString(doc, 'by')"},
	{"time", "DateTime", "toDateTime(JSONExtractUInt(doc, 'time'))"},
	{"text", "String", "JSONExtractString(doc, 'text')"},
	{"dead", "UInt8", "JSONExtractBool(doc, 'dead')"},
	{"parent", "UInt64", "JSONExtractUInt(doc, 'parent')"},
	{"poll", "UInt64", "JSONExtractUInt(doc, 'poll')"},
	{"kids", "Array(UInt64)", "JSONExtract(doc, 'kids', 'Array(UInt64)')"},
	{"url", "String", "JSONExtractString(doc, 'url')"},
	{"score", "Int64", "JSONExtractInt(doc, 'score')"},
	{"title", "String", "JSONExtractString(doc, 'title')"},
	{"parts", "Array(UInt64)", "JSONExtract(doc, 'parts', 'Array(UInt64)')"},
	{"descendants", "Int64", "JSONExtractInt(doc, 'descendants')"},
	{"raw", "String", "doc"},
	{"ingested_at", "DateTime", "now()"},
}

// CreateDatabaseSQL creates the database holding both tables
func CreateDatabaseSQL(db string) string {
	return "CREATE DATABASE IF NOT EXISTS " + db
}

// CreateRawSQL creates the staging table; one JSON document per row, id and
// deleted materialized for the merge
func CreateRawSQL(raw string) string {
	return "CREATE TABLE IF NOT EXISTS " + raw + ` (
		doc String,
		id UInt64 MATERIALIZED JSONExtractUInt(doc, 'id'),
		deleted UInt8 MATERIALIZED JSONExtractBool(doc, 'deleted')
	) ENGINE = MergeTree ORDER BY id`
}

// CreateCanonicalSQL creates the canonical items table keyed by id
func CreateCanonicalSQL(table string) string {
	defs := make([]string, len(itemColumns))
	for i, c := range itemColumns {
		defs[i] = c.name + " " + c.typ
	}
	return "CREATE TABLE IF NOT EXISTS " + table + " (\n\t\t" +
		strings.Join(defs, ",\n\t\t") +
		"\n\t) ENGINE = MergeTree ORDER BY id"
}

// TruncateSQL empties the staging table
func TruncateSQL(raw string) string {
	return "TRUNCATE TABLE IF EXISTS " + raw
}

// BulkLoadSQL copies every staged line into the staging table
func BulkLoadSQL(raw, source string) string {
	return fmt.Sprintf("INSERT INTO %s (doc) SELECT json FROM %s", raw, source)
}

// CountsSQL returns staged rows, tombstones that hit an existing row and distinct live ids, in that order
func CountsSQL(table, raw string) string {
	return fmt.Sprintf(`SELECT
		(SELECT count() FROM %[2]s) AS staged,
		(SELECT count() FROM %[1]s WHERE id IN (SELECT id FROM %[2]s WHERE deleted)) AS tombstones,
		(SELECT uniqExact(id) FROM %[2]s WHERE id > 0 AND NOT deleted) AS upserted`,
		table, raw)
}

// DeleteStagedSQL drops every canonical row whose id was staged, tombstoned or not.
// The mutation is synchronous so the insert that follows sees the result
func DeleteStagedSQL(table, raw string) string {
	return fmt.Sprintf(
		"ALTER TABLE %s DELETE WHERE id IN (SELECT id FROM %s) SETTINGS mutations_sync = 1",
		table, raw)
}

// InsertLiveSQL inserts one row per live staged id
func InsertLiveSQL(table, raw string) string {
	names := make([]string, len(itemColumns))
	exprs := make([]string, len(itemColumns))
	for i, c := range itemColumns {
		names[i] = c.name
		exprs[i] = c.expr + " AS " + c.name
	}
	return fmt.Sprintf(`INSERT INTO %s (%s)
	SELECT
		%s
	FROM %s
	WHERE id > 0 AND NOT deleted
	ORDER BY id
	LIMIT 1 BY id`,
		table, strings.Join(names, ", "), strings.Join(exprs, ",\n\t\t"), raw)
}
