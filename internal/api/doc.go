// Package api implements the authenticated client for the vendor's
// security-scanning REST API, together with the two behaviors every call
// site needs: bounded exponential-backoff retry and page-token pagination.
//
// The package knows the API's shape (the auth exchange, the
// list_parameters query grammar, the pagination envelope) but treats the
// records themselves as opaque (see internal/model.Record). Filter strings
// are passed through verbatim; the client never interprets them.
//
// Layering, bottom up:
//   - Client.doOnce: one HTTP round trip, refresh-on-401 token exchange
//   - RetryPolicy.Do: wraps one round trip in a retry loop, returning an
//     explicit Result (attempts used, last cause) instead of raising
//     through control flow
//   - Client.ListAll: drives page_id continuation until exhaustion, with
//     optional adaptive page-size reduction on repeated page failures
//   - ListNamespaces / ListProjects / ProjectFindings /
//     ProjectScanResults: the concrete endpoints the exporter consumes
package api
