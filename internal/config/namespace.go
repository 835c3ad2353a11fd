package config

// NamespaceConfig holds per-namespace overrides for export behavior.
// This allows tuning page sizes for namespaces with unusually heavy
// findings payloads, and excluding projects that should not be exported.
type NamespaceConfig struct {
	// FindingsPageSize overrides the findings list page size for this
	// namespace. If zero, the global default is used.
	FindingsPageSize int `yaml:"findingsPageSize,omitempty"`

	// ScanResultsPageSize overrides the scan-results list page size for
	// this namespace. If zero, the global default is used.
	ScanResultsPageSize int `yaml:"scanResultsPageSize,omitempty"`

	// SkipProjects lists project UUIDs to exclude from the export.
	// Skipped-by-config projects are not checkpointed; they are simply
	// never visited.
	SkipProjects []string `yaml:"skipProjects,omitempty"`
}

// File represents the structure of the .scanexport configuration file.
type File struct {
	// Namespaces maps namespace identifiers to their overrides.
	Namespaces map[string]NamespaceConfig `yaml:"namespaces,omitempty"`

	// Defaults contains overrides applied to all namespaces unless a
	// namespace-specific block overrides them again.
	Defaults NamespaceConfig `yaml:"defaults,omitempty"`
}

// GetNamespaceConfig returns the configuration for a namespace, merging
// the namespace-specific block over the file defaults.
func (cf *File) GetNamespaceConfig(namespace string) NamespaceConfig {
	result := cf.Defaults

	if nsConfig, ok := cf.Namespaces[namespace]; ok {
		if nsConfig.FindingsPageSize != 0 {
			result.FindingsPageSize = nsConfig.FindingsPageSize
		}
		if nsConfig.ScanResultsPageSize != 0 {
			result.ScanResultsPageSize = nsConfig.ScanResultsPageSize
		}
		if len(nsConfig.SkipProjects) > 0 {
			result.SkipProjects = nsConfig.SkipProjects
		}
	}

	return result
}

// ShouldSkip reports whether the given project UUID is excluded by this
// namespace's skip list.
func (nc NamespaceConfig) ShouldSkip(projectUUID string) bool {
	for _, uuid := range nc.SkipProjects {
		if uuid == projectUUID {
			return true
		}
	}
	return false
}
