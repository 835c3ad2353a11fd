// Package model defines the core data types shared across scanexport:
// namespaces, projects, opaque API records, and per-project export results.
//
// Records returned by the vendor API are deliberately kept opaque. Their
// schema is vendor-owned and changes without notice, so the only structure
// this package assumes is what the export engine itself needs: the
// pagination envelope and the identifiers used to name output files.
package model
