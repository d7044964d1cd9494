package db

import (
	_ "embed"
	"net/url"
)

// Both schemas create cycles, cycle_lines and train_baselines. Expired
// cycle_lines rows go with their cycle through ON DELETE CASCADE.
//
//go:embed schema.sql
var schemaSQL string

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// cyclePragmas are set on every SQLite connection through the DSN.
// Cleanup depends on foreign_keys for the cycle_lines cascade.
var cyclePragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range cyclePragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}
