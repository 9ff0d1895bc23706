// Package main provides the entry point for the bankrotscan CLI.
//
// bankrotscan collects bankrupt companies and persons from the fedresurs
// bankruptcy registry, enriches each record from the per-entity detail
// resources and appends new records to a two-sheet xlsx workbook.
//
// Usage:
//
//	bankrotscan collect
//	bankrotscan collect -n 200 -o registry.xlsx --kinds legal
//	bankrotscan history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
