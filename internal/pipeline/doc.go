// Package pipeline runs a collection as a sequence of steps.
//
// A run goes through three steps: collect (page through the registry
// list and enrich each item), persist (append the records to the
// workbook) and ledger (record the run in the SQLite ledger). Each step
// receives the shared model.Run and fills in its part.
//
// Record kinds are collected by independent goroutines under an errgroup
// limit; within a kind, items are processed one at a time with a pacing
// delay between them.
package pipeline
