// Package model defines the records collected from the bankruptcy registry
// and the run that collects them.
//
// LegalEntityRecord and IndividualRecord are flat, fully normalized string
// rows whose field order matches the workbook header. SourceURL is the
// dedupe key and is always the last column. Run aggregates the records
// and per-kind counters of one collection run; it is shared by the
// pipeline, the run ledger and the report writers, which is why it lives
// here rather than in any of them.
package model
