package constants

// DialectType is the backing database dialect of the content server.
type DialectType string

const (
	MSSQL  DialectType = "mssql"
	Oracle DialectType = "oracle"
)

const (
	// DefaultBatchSize is the number of candidate rows fetched per query
	// when the host gives no hint (or resets with a hint of 0).
	DefaultBatchSize = 100

	// MaxBatchSize caps candidate queries regardless of the hint; both
	// dialects degrade badly on larger TOP/ROWNUM windows.
	MaxBatchSize = 1000

	// BatchSizeGrowthFactor multiplies the batch size while scanning
	// sparse regions where no candidate survives filtering.
	BatchSizeGrowthFactor = 10
)

const (
	// NodeView is the joined node view the candidate and result queries select from.
	NodeView = "WebNodes"
	// TreeView is the raw node table used for parent walks and volume lookups.
	TreeView = "DTree"
	// AncestorView is the optional precomputed ancestor-closure table.
	AncestorView = "DTreeAncestors"
	// AuditView is the audit trail the delete queries select from.
	AuditView = "DAuditNew"
	// DualViewMSSQL and DualViewOracle are single-row system views used for probes.
	DualViewMSSQL  = "KDual"
	DualViewOracle = "dual"
)

const (
	// DeleteAuditEvent is the audit type id recorded for node deletions.
	DeleteAuditEvent = 2

	// TimestampLayout is the seconds-precision layout used by cursors and
	// SQL timestamp literals.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Viper keys shared between protocol and logger.
const (
	ConfigFolder = "CONFIG_FOLDER"
	StatePath    = "STATE_PATH"
)
