// Package verify checks exported artifacts against their manifests: for
// every manifest row the artifact files must exist and their record
// counts must equal what the export recorded. It is the post-run sanity
// check for a crawl whose artifacts may have been moved, truncated, or
// partially deleted since they were written.
package verify
