// Package types provides common type definitions for the portfolio importer.
package types

// AssetType is the classification tag attached to every holding
type AssetType string

const (
	// AssetUnknown marks a record that has not been classified yet
	AssetUnknown AssetType = "unknown"
	// AssetStock represents a listed equity share
	AssetStock AssetType = "stock"
	// AssetETF represents an exchange traded fund
	AssetETF AssetType = "etf"
	// AssetMutualFund represents a mutual fund scheme held in units
	AssetMutualFund AssetType = "mutual_fund"
	// AssetSGB represents a sovereign gold bond
	AssetSGB AssetType = "sgb"
	// AssetREIT represents a listed real estate investment trust
	AssetREIT AssetType = "reit"
)

// IsValid reports whether the asset type is one of the known tags
func (a AssetType) IsValid() bool {
	switch a {
	case AssetUnknown, AssetStock, AssetETF, AssetMutualFund, AssetSGB, AssetREIT:
		return true
	}
	return false
}

// LayoutKind identifies a known source layout
type LayoutKind string

const (
	// LayoutBrokerConsoleNew is the current broker console holdings export
	LayoutBrokerConsoleNew LayoutKind = "broker-console-new"
	// LayoutBrokerConsoleOld is the legacy broker console holdings export
	LayoutBrokerConsoleOld LayoutKind = "broker-console-old"
	// LayoutGenericHoldings is the fuzzy-matched fallback for holdings sheets
	LayoutGenericHoldings LayoutKind = "generic-holdings"
	// LayoutGenericMutualFund is the fuzzy-matched fallback for fund statements
	LayoutGenericMutualFund LayoutKind = "generic-mutual-fund"
	// LayoutTradebook is the broker tradebook export used for transaction uploads
	LayoutTradebook LayoutKind = "tradebook"
)

// IsGeneric reports whether the layout uses fuzzy column matching
func (k LayoutKind) IsGeneric() bool {
	return k == LayoutGenericHoldings || k == LayoutGenericMutualFund
}

// WarningKind categorizes a row-level import warning
type WarningKind string

const (
	// WarningMissingField is raised when a row lacks a field and is skipped
	WarningMissingField WarningKind = "missing_field"
	// WarningDefaultedValue is raised when a default replaced a missing value
	WarningDefaultedValue WarningKind = "defaulted_value"
	// WarningDuplicateMerge is raised when a record merged into an existing holding
	WarningDuplicateMerge WarningKind = "duplicate_merge"
	// WarningUnclassifiedAsset is raised when classification fell through to the default
	WarningUnclassifiedAsset WarningKind = "unclassified_asset"
)

// ImportStatus is the outcome of one import call
type ImportStatus string

const (
	// ImportSuccess means every sheet was processed to completion
	ImportSuccess ImportStatus = "success"
	// ImportPartial means a persistence failure stopped at least one sheet early
	ImportPartial ImportStatus = "partial"
	// ImportFailed means the file was rejected before any holding changed
	ImportFailed ImportStatus = "failed"
)

// FileKind is the container format of an uploaded file
type FileKind string

const (
	FileCSV  FileKind = "csv"
	FileXLSX FileKind = "xlsx"
	FileXLS  FileKind = "xls"
	FilePDF  FileKind = "pdf"
)

// UploadKind tells the importer what an uploaded file contains
type UploadKind string

const (
	// UploadHoldings merges rows into the account's holdings
	UploadHoldings UploadKind = "holdings"
	// UploadTransactions appends rows to the account's transaction ledger
	UploadTransactions UploadKind = "transactions"
)

// ParseUploadKind converts a form value into an UploadKind, defaulting to holdings
func ParseUploadKind(s string) (UploadKind, bool) {
	switch UploadKind(s) {
	case "", UploadHoldings:
		return UploadHoldings, true
	case UploadTransactions:
		return UploadTransactions, true
	}
	return "", false
}

// TradeType is the side of a tradebook entry
type TradeType string

const (
	TradeBuy  TradeType = "buy"
	TradeSell TradeType = "sell"
)

// Exchange codes expected by downstream price lookups
const (
	ExchangeNSE        = "NS"
	ExchangeBSE        = "BO"
	ExchangeMutualFund = "MF"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
