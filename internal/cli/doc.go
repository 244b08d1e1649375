// Package cli holds output helpers shared by the operator's commands:
// output format selection, the status table and the errors that map to
// dedicated exit codes.
package cli
