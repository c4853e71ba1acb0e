// Package repository holds the MySQL data access layer. Repositories take a
// *sql.DB and expose context-aware methods.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a looked-up row does not exist. Handlers
// translate it into 404.
var ErrNotFound = errors.New("not found")

// MySQL server error numbers the repositories react to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicateKey reports a unique constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if mysqlErrorNumber(err) == errDupEntry {
		return true
	}
	return strings.Contains(err.Error(), "1062")
}

// isRetryableTxError reports errors after which the whole transaction can
// be replayed: InnoDB rolled it back and nothing was written.
func isRetryableTxError(err error) bool {
	switch mysqlErrorNumber(err) {
	case errDeadlock, errLockWaitTimeout:
		return true
	}
	return false
}
