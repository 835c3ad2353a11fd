package api

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/nao1215/scanexport/internal/config"
	"github.com/nao1215/scanexport/internal/model"
)

// ListNamespaces returns the sorted set of namespaces reachable from root,
// including root itself.
//
// Discovery order (inherited from the export tooling's operational
// history, where tenants differ in which endpoints they expose):
//  1. the namespaces endpoint with traverse
//  2. fallback: distinct tenant_meta.namespace values of the root's
//     traversed project list
//  3. fallback: just the root
//
// A failure of the primary endpoint only triggers the fallback; a failure
// of both is fatal for the run, since nothing can be enumerated.
func (c *Client) ListNamespaces(ctx context.Context, root string) ([]string, error) {
	records, err := c.ListAll(ctx, "namespaces", ListParams{
		Mask:     "uuid,meta.name",
		Traverse: true,
	})
	if err != nil {
		c.logger.Warn("namespaces endpoint failed, deriving namespaces from projects",
			"root", root,
			"cause", err.Error(),
		)
		return c.namespacesFromProjects(ctx, root)
	}

	seen := make(map[string]bool, len(records))
	for _, record := range records {
		if name := record.Name(); name != "" {
			seen[name] = true
		}
	}

	if len(seen) == 0 {
		c.logger.Warn("namespaces endpoint returned nothing, deriving namespaces from projects",
			"root", root,
		)
		return c.namespacesFromProjects(ctx, root)
	}

	return sortedKeys(seen), nil
}

// namespacesFromProjects derives the namespace set from the distinct
// tenant_meta.namespace values of the root's traversed projects.
func (c *Client) namespacesFromProjects(ctx context.Context, root string) ([]string, error) {
	records, err := c.ListAll(ctx, projectsPath(root), ListParams{
		Mask:     "uuid,tenant_meta.namespace",
		Traverse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating namespaces under %q: %w", root, err)
	}

	seen := make(map[string]bool)
	for _, record := range records {
		if ns := record.StringAt("tenant_meta.namespace"); ns != "" {
			seen[ns] = true
		}
	}

	if len(seen) == 0 {
		return []string{root}, nil
	}
	return sortedKeys(seen), nil
}

// ListProjects returns all projects in the namespace. The field mask keeps
// responses down to the identifiers the exporter needs.
//
// Project order follows the API's page order and is not guaranteed stable
// across runs; callers must not depend on it for correctness.
func (c *Client) ListProjects(ctx context.Context, namespace string) ([]model.Project, error) {
	records, err := c.ListAll(ctx, projectsPath(namespace), ListParams{
		Mask:     "uuid,meta.name",
		Traverse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing projects in %q: %w", namespace, err)
	}

	projects := make([]model.Project, 0, len(records))
	for _, record := range records {
		uuid := record.UUID()
		if uuid == "" {
			// A project without a UUID cannot be exported or checkpointed.
			c.logger.Warn("skipping project record without uuid", "namespace", namespace)
			continue
		}
		name := record.Name()
		if name == "" {
			name = "unknown"
		}
		projects = append(projects, model.Project{
			UUID:      uuid,
			Name:      name,
			Namespace: namespace,
		})
	}

	return projects, nil
}

// findingsMask limits findings payloads to the fields the export consumers
// actually use downstream. Full findings are enormous.
const findingsMask = "uuid,meta.create_time,context.type,context.id," +
	"spec.project_uuid,spec.summary,spec.target_dependency_name," +
	"spec.target_dependency_version"

// scanResultsMask limits scan-result payloads similarly.
const scanResultsMask = "uuid,meta.parent_uuid,context.type,spec.start_time," +
	"spec.end_time,spec.status,spec.exit_code"

// ProjectFindings fetches all MAIN-context findings for a project.
// pageSize 0 uses the default; the page size adapts downward on failures.
func (c *Client) ProjectFindings(ctx context.Context, namespace, projectUUID string, pageSize int) ([]model.Record, error) {
	if pageSize <= 0 {
		pageSize = config.DefaultFindingsPageSize
	}
	return c.ListAll(ctx, namespacePath(namespace, "findings"), ListParams{
		Filter:           "context.type==CONTEXT_TYPE_MAIN and spec.project_uuid==" + projectUUID,
		Mask:             findingsMask,
		PageSize:         pageSize,
		Traverse:         true,
		ServerTimeout:    "240s",
		Timeout:          c.findingsTimeout,
		AdaptivePageSize: true,
		MinPageSize:      config.DefaultMinPageSize,
	})
}

// ProjectScanResults fetches all MAIN-context scan results for a project.
func (c *Client) ProjectScanResults(ctx context.Context, namespace, projectUUID string, pageSize int) ([]model.Record, error) {
	if pageSize <= 0 {
		pageSize = config.DefaultScanResultsPageSize
	}
	return c.ListAll(ctx, namespacePath(namespace, "scan-results"), ListParams{
		Filter:           "context.type==CONTEXT_TYPE_MAIN and meta.parent_uuid==" + projectUUID,
		Mask:             scanResultsMask,
		PageSize:         pageSize,
		Traverse:         true,
		ServerTimeout:    "180s",
		Timeout:          c.scanResultsTimeout,
		AdaptivePageSize: true,
		MinPageSize:      config.DefaultMinPageSize,
	})
}

// projectsPath returns the projects listing path for a namespace.
func projectsPath(namespace string) string {
	return namespacePath(namespace, "projects")
}

// namespacePath builds "namespaces/<ns>/<resource>" with the namespace
// path-escaped. Namespaces are dot-separated and normally need no
// escaping, but a malformed identifier must not break out of the path.
func namespacePath(namespace, resource string) string {
	return "namespaces/" + url.PathEscape(namespace) + "/" + resource
}

// sortedKeys returns the map's keys in sorted order.
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
