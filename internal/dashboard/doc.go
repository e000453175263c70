// Package dashboard provides the business boundary for the alert dashboard.
// It defines the Service (ingest, lookup, summarize), the Source and Store
// interfaces the service reads from and writes to, and the Prometheus metrics
// for those operations. Aggregation itself lives in package summary.
package dashboard
