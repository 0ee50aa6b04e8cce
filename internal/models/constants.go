package models

// Transaction and purchase statuses.
const (
	StatusPending   = "pending"
	StatusFinalized = "finalized"
	StatusCanceled  = "canceled"
)

// Product transaction types.
const (
	TrxPurchase   = "purchase"
	TrxInventory  = "inventory"
	TrxCorrection = "correction"
)

// Wallet transaction types.
const (
	WalletTrxPurchase    = "purchase"
	WalletTrxDeposit     = "deposit"
	WalletTrxWithdrawal  = "withdrawal"
	WalletTrxCorrection  = "correction"
	WalletTrxCashPayment = "cash_payment"
)

// Sync task types handled by the background worker.
const (
	TaskForecastUpdate = "forecast_update"
	TaskRefillOrder    = "refill_order"
)

// Sync task queue statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	// DefaultStocktakeChunkSize products per stock-taking chunk. Products
	// sharing a category usually sit next to each other on the shelves,
	// so chunks are built from a category-ordered product list.
	DefaultStocktakeChunkSize = 10

	// DefaultCurrency used for all wallet amounts.
	DefaultCurrency = "SEK"

	// AccountCacheTTL lifetime of cached account snapshots in seconds.
	AccountCacheTTL = 5 * 60

	// KioskRateLimitScans card scans per window per card.
	KioskRateLimitScans = 30

	// KioskRateLimitWindow rate limit window in seconds.
	KioskRateLimitWindow = 60

	// WorkerQueueSize size of the in-memory task queue.
	WorkerQueueSize = 128
)
