// airexport exports linked Airtable tables to flat CSV files.
//
// Usage:
//
//	# Export every enabled kind
//	airexport export
//
//	# Run kinds on their cron schedules
//	airexport schedule
//
//	# Inspect a kind's live columns
//	airexport schema enrollments
package main

import (
	"os"

	"airexport/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
