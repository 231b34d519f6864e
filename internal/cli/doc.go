// Package cli implements the command-line interface for mothership-events.
//
// The check command runs one detection pass and exits with status 2 when new
// events were found, so cron jobs and CI can act on it. The notify command
// sends messages for events read as JSON (the output of check, or a
// notification payload). The dispatch command runs an operation by handler
// name exactly as the Lambda entry point does.
package cli
