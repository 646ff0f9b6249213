package apperr

// Code is a machine-readable error code returned to clients in the "code"
// field of error bodies.
type Code string

const (
	// Not found.
	CodeEventNotFound       Code = "EVENT_NOT_FOUND"
	CodeReservationNotFound Code = "RESERVATION_NOT_FOUND"
	CodeUserNotFound        Code = "USER_NOT_FOUND"

	// Invalid state.
	CodeEventNotOpen           Code = "EVENT_NOT_OPEN"
	CodeAlreadyCanceled        Code = "RESERVATION_ALREADY_CANCELED"
	CodeAlreadyRefused         Code = "RESERVATION_REFUSED"
	CodeInvalidTransition      Code = "INVALID_STATUS_TRANSITION"
	CodeInvalidEventTransition Code = "INVALID_EVENT_TRANSITION"

	// Conflict.
	CodeDuplicateReservation Code = "RESERVATION_DUPLICATE"
	CodeCapacityExceeded     Code = "EVENT_CAPACITY_EXCEEDED"
	CodeConcurrentUpdate     Code = "CONCURRENT_UPDATE"
	CodeEmailExists          Code = "EMAIL_EXISTS"

	// Forbidden.
	CodeNotOwner  Code = "NOT_RESERVATION_OWNER"
	CodeAdminOnly Code = "ADMIN_ONLY"

	// Invalid argument.
	CodeInvalidInput Code = "INVALID_INPUT"
)

var codeKinds = map[Code]Kind{
	CodeEventNotFound:       KindNotFound,
	CodeReservationNotFound: KindNotFound,
	CodeUserNotFound:        KindNotFound,

	CodeEventNotOpen:           KindInvalidState,
	CodeAlreadyCanceled:        KindInvalidState,
	CodeAlreadyRefused:         KindInvalidState,
	CodeInvalidTransition:      KindInvalidState,
	CodeInvalidEventTransition: KindInvalidState,

	CodeDuplicateReservation: KindConflict,
	CodeCapacityExceeded:     KindConflict,
	CodeConcurrentUpdate:     KindConflict,
	CodeEmailExists:          KindConflict,

	CodeNotOwner:  KindForbidden,
	CodeAdminOnly: KindForbidden,

	CodeInvalidInput: KindInvalidArgument,
}

// Kind returns the class the code belongs to, or "" for unknown codes.
func (c Code) Kind() Kind {
	return codeKinds[c]
}
