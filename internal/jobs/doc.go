// Package jobs defines the records, ports, and error taxonomy shared by the
// extraction, processing, and load pipelines of jobhunter.
package jobs
