package model

// Project is one scanned repository in the vendor system.
// Only the fields the export engine needs are kept; everything else in the
// project object is requested away via the list field mask.
type Project struct {
	// UUID is the vendor-assigned opaque identifier. It is the key used
	// for checkpoint entries and artifact file names.
	UUID string

	// Name is the human-readable project name, typically a repository URL.
	// Used only for log output and the export manifest.
	Name string

	// Namespace is the namespace the project belongs to.
	Namespace string
}

// ArtifactKind identifies one of the two per-project export artifacts.
type ArtifactKind string

// The two artifact kinds exported for every project.
const (
	// ArtifactFindings is the project's findings export
	// (filter: context.type==CONTEXT_TYPE_MAIN and spec.project_uuid==<id>).
	ArtifactFindings ArtifactKind = "findings"

	// ArtifactScanResults is the project's scan-results export
	// (filter: context.type==CONTEXT_TYPE_MAIN and meta.parent_uuid==<id>).
	ArtifactScanResults ArtifactKind = "scanresults"
)

// String returns the kind as used in artifact file names.
func (k ArtifactKind) String() string {
	return string(k)
}
