package onem2m

import "fmt"

// StatusCode is a oneM2M response status code (TS-0004 clause 6.6.3).
type StatusCode int

// Response status codes used by the dispatch core.
const (
	StatusOK      StatusCode = 2000
	StatusCreated StatusCode = 2001
	StatusDeleted StatusCode = 2002
	StatusUpdated StatusCode = 2004

	StatusBadRequest                  StatusCode = 4000
	StatusNotFound                    StatusCode = 4004
	StatusOperationNotAllowed         StatusCode = 4005
	StatusOriginatorHasNoPrivilege    StatusCode = 4103
	StatusConflict                    StatusCode = 4105
	StatusSecurityAssociationRequired StatusCode = 4107
	StatusInvalidChildResourceType    StatusCode = 4108

	StatusInternalServerError   StatusCode = 5000
	StatusNotImplemented        StatusCode = 5001
	StatusTargetNotReachable    StatusCode = 5103
	StatusTargetNotSubscribable StatusCode = 5203

	StatusInvalidArguments StatusCode = 6023
)

// Successful reports whether the code indicates a successful outcome.
func (c StatusCode) Successful() bool {
	return c >= 2000 && c < 3000
}

// String returns a short human-readable name for the code.
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusCreated:
		return "CREATED"
	case StatusDeleted:
		return "DELETED"
	case StatusUpdated:
		return "UPDATED"
	case StatusBadRequest:
		return "BAD_REQUEST"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusOperationNotAllowed:
		return "OPERATION_NOT_ALLOWED"
	case StatusOriginatorHasNoPrivilege:
		return "ORIGINATOR_HAS_NO_PRIVILEGE"
	case StatusConflict:
		return "CONFLICT"
	case StatusSecurityAssociationRequired:
		return "SECURITY_ASSOCIATION_REQUIRED"
	case StatusInvalidChildResourceType:
		return "INVALID_CHILD_RESOURCE_TYPE"
	case StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	case StatusTargetNotReachable:
		return "TARGET_NOT_REACHABLE"
	case StatusTargetNotSubscribable:
		return "TARGET_NOT_SUBSCRIBABLE"
	case StatusInvalidArguments:
		return "INVALID_ARGUMENTS"
	default:
		return fmt.Sprintf("STATUS_%d", int(c))
	}
}

// Status pairs a response status code with an optional debug message.
// Expected failures travel up the dispatch stack as values, never as panics.
type Status struct {
	Code  StatusCode
	Debug string
}

// OK is the all-purpose success status.
var OK = Status{Code: StatusOK}

// Statusf builds a Status with a formatted debug message.
func Statusf(code StatusCode, format string, args ...any) Status {
	return Status{Code: code, Debug: fmt.Sprintf(format, args...)}
}

// Successful reports whether the status carries a success code.
func (s Status) Successful() bool {
	return s.Code.Successful()
}

// Error makes a failed Status usable as an error value at call sites that
// want one. Successful statuses should not be treated as errors.
func (s Status) Error() string {
	if s.Debug == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Debug)
}
