// Package gitlab exposes a curated set of GitLab operations as MCP tools.
//
// Clients are constructed per call from the credentials the dispatch layer
// resolved for that call, so a per-request override or a freshly refreshed
// OAuth token takes effect immediately without client caching concerns.
package gitlab
