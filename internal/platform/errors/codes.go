// Package errors provides structured domain errors with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// User errors
	CodeUserEmailInvalid     Code = "USER_EMAIL_INVALID"
	CodeUserEmailTaken       Code = "USER_EMAIL_TAKEN"
	CodeUserNameEmpty        Code = "USER_NAME_EMPTY"
	CodeUserPasswordTooShort Code = "USER_PASSWORD_TOO_SHORT"

	// Auth errors
	CodeAuthCredentialsInvalid Code = "AUTH_CREDENTIALS_INVALID"
	CodeAuthTokenInvalid       Code = "AUTH_TOKEN_INVALID"
	CodeAuthTokenMissing       Code = "AUTH_TOKEN_MISSING"

	// Asset errors
	CodeAssetNameEmpty    Code = "ASSET_NAME_EMPTY"
	CodeAssetInvalidType  Code = "ASSET_INVALID_TYPE"
	CodeAssetOwnerMissing Code = "ASSET_OWNER_MISSING"

	// Beneficiary errors
	CodeBeneficiaryUserMissing  Code = "BENEFICIARY_USER_MISSING"
	CodeBeneficiaryInvalidShare Code = "BENEFICIARY_INVALID_SHARE"
	CodeBeneficiaryShareOverCap Code = "BENEFICIARY_SHARE_OVER_CAP"

	// Verification event errors
	CodeEventSubjectMissing           Code = "EVENT_SUBJECT_MISSING"
	CodeEventInvalidVerificationType  Code = "EVENT_INVALID_VERIFICATION_TYPE"
	CodeEventInvalidRequiredApprovals Code = "EVENT_INVALID_REQUIRED_APPROVALS"

	// Approval errors
	CodeApprovalInvalidStatus Code = "APPROVAL_INVALID_STATUS"
	CodeApprovalDuplicate     Code = "APPROVAL_DUPLICATE"

	// List filter errors
	CodeFilterInvalid Code = "FILTER_INVALID"

	// Request errors
	CodeRequestMalformed Code = "REQUEST_MALFORMED"

	// Storage errors
	CodeNotFound            Code = "NOT_FOUND"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"

	// Transfer errors
	CodeTransferBatchFailed Code = "TRANSFER_BATCH_FAILED"
)

// HTTPStatus maps domain codes to HTTP response status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeUserEmailInvalid,
		CodeUserNameEmpty,
		CodeUserPasswordTooShort,
		CodeAssetNameEmpty,
		CodeAssetInvalidType,
		CodeAssetOwnerMissing,
		CodeBeneficiaryUserMissing,
		CodeBeneficiaryInvalidShare,
		CodeEventSubjectMissing,
		CodeEventInvalidVerificationType,
		CodeEventInvalidRequiredApprovals,
		CodeApprovalInvalidStatus,
		CodeFilterInvalid,
		CodeRequestMalformed:
		return http.StatusBadRequest

	// Unauthorized - identity could not be established
	case CodeAuthCredentialsInvalid,
		CodeAuthTokenInvalid,
		CodeAuthTokenMissing:
		return http.StatusUnauthorized

	// Not found - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// Conflict - unique resource constraint
	case CodeUserEmailTaken,
		CodeApprovalDuplicate:
		return http.StatusConflict

	// Unprocessable - state disallows the operation
	case CodeBeneficiaryShareOverCap:
		return http.StatusUnprocessableEntity

	// Unavailable - transient contention that exhausted retries
	case CodeConcurrencyConflict:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
