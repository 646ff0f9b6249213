// Package repository defines the MySQL stores and the sentinel errors every
// store implementation (MySQL or in-memory) reports. Services translate
// these sentinels into domain errors; handlers never see them directly.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateActive is returned by a guarded reservation insert when the
// user already holds a reservation for the event that is not CANCELED.
var ErrDuplicateActive = errors.New("active reservation already exists")

// ErrCapacityReached is returned by a guarded reservation insert when the
// event has no slot left at the moment of the write.
var ErrCapacityReached = errors.New("event capacity reached")

// ErrEventClosed is returned by a guarded reservation insert when the event
// stopped being PUBLISHED before the write.
var ErrEventClosed = errors.New("event not accepting reservations")

// ErrStatusMismatch is returned by a conditional status update when the row
// is no longer in the expected FROM status.
var ErrStatusMismatch = errors.New("status changed concurrently")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers the stores react to.
const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
)

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDeadlock
}
