// Package main provides the entry point for the scanexport CLI.
//
// scanexport exports findings and scan results for every project under
// an Endor Labs namespace into per-namespace JSON artifacts. Runs are
// checkpointed per namespace, so a crashed or interrupted export can be
// re-run and it picks up where it left off.
//
// Usage:
//
//	scanexport export --namespace <namespace>
//	scanexport verify
//	scanexport namespaces --namespace <namespace>
//
// See --help for all available options.
package main

import "os"

// main is the entry point for scanexport.
func main() {
	os.Exit(Execute())
}
