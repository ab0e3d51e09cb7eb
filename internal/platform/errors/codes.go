// Package errors provides structured error handling for ledger operations.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Access control errors
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeAccessDenied Code = "ACCESS_DENIED"

	// Token ledger errors
	CodeZeroAddress           Code = "ZERO_ADDRESS"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance Code = "INSUFFICIENT_ALLOWANCE"
	CodeSupplyOverflow        Code = "SUPPLY_OVERFLOW"

	// Marketplace errors
	CodeEmptyTitle       Code = "COURSE_TITLE_EMPTY"
	CodeCourseNotFound   Code = "COURSE_NOT_FOUND"
	CodeCourseInactive   Code = "COURSE_INACTIVE"
	CodeAlreadyPurchased Code = "COURSE_ALREADY_PURCHASED"
	CodeFeeTooHigh       Code = "PLATFORM_FEE_TOO_HIGH"

	// Bootstrap errors
	CodeAlreadyInitialized Code = "LEDGER_ALREADY_INITIALIZED"
	CodeNotInitialized     Code = "LEDGER_NOT_INITIALIZED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeZeroAddress,
		CodeEmptyTitle,
		CodeFeeTooHigh,
		CodeSupplyOverflow:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInsufficientBalance,
		CodeInsufficientAllowance,
		CodeCourseInactive,
		CodeAlreadyPurchased,
		CodeAlreadyInitialized,
		CodeNotInitialized:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeCourseNotFound:
		return codes.NotFound

	// PermissionDenied - caller lacks the required capability
	case CodeUnauthorized,
		CodeAccessDenied:
		return codes.PermissionDenied

	default:
		return codes.Internal
	}
}
