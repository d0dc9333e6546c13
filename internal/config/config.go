package config

const (
	DefaultTimeZone = "Asia/Kolkata"

	// Upload limits
	MaxUploadBytes = 32 << 20

	// Strict XML pipeline commits one transaction per chunk of this many rows.
	XMLChunkSize = 500

	// Loose spreadsheet pipeline commits per row.
	LooseCommitBatchSize = 1

	// Error samples returned inline; the full list is available as CSV.
	MaxResponseErrorsXML  = 100
	MaxResponseErrorsSync = 50

	// Dashboard ledger list cap and page size ceiling.
	DashboardLedgerLimit = 1000
	MaxPageSize          = 1000

	// Integrity fix job
	DefaultFixSchedule = "30 2 * * *"
	FixBatchSize       = 200

	// Auto-created customers get a synthetic, never-dialable mobile.
	PlaceholderMobilePrefix = "00"
)
