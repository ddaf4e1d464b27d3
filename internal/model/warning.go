package model

import "fmt"

// WarningCode classifies a data-quality warning.
type WarningCode string

const (
	WarnEmptySeries   WarningCode = "empty_series"
	WarnMissingField  WarningCode = "missing_field"
	WarnDuplicateDate WarningCode = "duplicate_date"
	WarnUnordered     WarningCode = "unordered"
	WarnUndated       WarningCode = "undated"
	WarnMalformed     WarningCode = "malformed_price"
	WarnPriceFormat   WarningCode = "price_format"
	WarnFutureDate    WarningCode = "future_date"
	WarnGap           WarningCode = "gap"
)

// Warning is a non-fatal data-quality finding.
type Warning struct {
	Code    WarningCode
	Message string
}

// Warnf builds a Warning.
func Warnf(code WarningCode, format string, args ...any) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
