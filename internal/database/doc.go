// Package database provides the SQLite run ledger for bankrotscan.
//
// The ledger stores:
//   - One row per collection run with its per-kind statistics
//   - One row per record ever collected, keyed by source URL, with a
//     content hash and first/last seen timestamps
//
// The workbook decides what gets appended; the ledger only observes, so
// deleting the database never changes what a run writes to the xlsx file.
// It uses modernc.org/sqlite, a CGO-free driver, and keeps a single
// connection with WAL enabled.
package database
