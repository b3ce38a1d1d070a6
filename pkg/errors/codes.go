package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
)

// Comparable search error codes.
const (
	ErrCodeSearchRequestInvalid ErrorCode = "CMP_001"
	ErrCodeSubjectInvalid       ErrorCode = "CMP_002"
	ErrCodePoolEmpty            ErrorCode = "CMP_003"
)

// Adjustment / override error codes.
const (
	ErrCodeAdjustmentFailed ErrorCode = "ADJ_001"
	ErrCodeOverrideInvalid  ErrorCode = "ADJ_002"
)

// Valuation error codes.
const (
	ErrCodeValuationFailed          ErrorCode = "VAL_001"
	ErrCodeValuationStrategyUnknown ErrorCode = "VAL_002"
)

// Report assembly error codes.
const (
	ErrCodeReportInputInvalid    ErrorCode = "RPT_001"
	ErrCodeReportTemplateInvalid ErrorCode = "RPT_002"
	ErrCodeReportArchiveFailed   ErrorCode = "RPT_003"
	ErrCodeReportLanguageInvalid ErrorCode = "RPT_004"
	ErrCodeReportSectionsMissing ErrorCode = "RPT_005"
)

// Data source error codes (government transaction feeds and mirrors).
const (
	ErrCodeDataSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeDataSourceParseError  ErrorCode = "SRC_003"
)

// Aliases used throughout the codebase.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeValidation   = ErrCodeValidation
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. The HTTP error
// middleware consults this map; codes absent from it surface as 500.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeSearchRequestInvalid: http.StatusBadRequest,
	ErrCodeSubjectInvalid:       http.StatusBadRequest,
	ErrCodePoolEmpty:            http.StatusBadRequest,

	ErrCodeAdjustmentFailed: http.StatusInternalServerError,
	ErrCodeOverrideInvalid:  http.StatusBadRequest,

	ErrCodeValuationFailed:          http.StatusInternalServerError,
	ErrCodeValuationStrategyUnknown: http.StatusBadRequest,

	ErrCodeReportInputInvalid:    http.StatusBadRequest,
	ErrCodeReportTemplateInvalid: http.StatusBadRequest,
	ErrCodeReportArchiveFailed:   http.StatusInternalServerError,
	ErrCodeReportLanguageInvalid: http.StatusBadRequest,
	ErrCodeReportSectionsMissing: http.StatusBadRequest,

	ErrCodeDataSourceUnavailable: http.StatusBadGateway,
	ErrCodeDataSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeDataSourceParseError:  http.StatusBadGateway,
}

// HTTPStatus returns the HTTP status for the code, defaulting to 500.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := ErrorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
