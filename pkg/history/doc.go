// Package history archives engine runs in SQLite. The twin repository
// keeps only a capped tail of execution records in its YAML index;
// every run and every dispatched execution also lands here, under
// <repo>/.twinsync/history.db, with WAL mode and embedded schema
// migrations.
package history
