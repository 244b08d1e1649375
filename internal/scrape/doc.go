// Package scrape publishes the exporter's scrape target for Prometheus.
//
// The target list is written as the JSON-encoded "targets" value of a
// relation-data file, a YAML mapping of string keys to string values that is
// shared with whoever consumes the monitoring relation. Other keys in the file
// are preserved.
package scrape
