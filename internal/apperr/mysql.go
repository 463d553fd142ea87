package apperr

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers for integrity constraint violations.
// https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlDupEntry     = 1062 // ER_DUP_ENTRY
	mysqlBadNull      = 1048 // ER_BAD_NULL_ERROR
	mysqlNoReferenced = 1452 // ER_NO_REFERENCED_ROW_2
)

// FromMySQL translates a driver-level constraint violation into the nearest
// taxonomy kind so raw store errors never leak to callers.  Unique → Conflict,
// foreign key and not-null → BadRequest, anything else → Internal.  Errors
// already inside the taxonomy pass through unchanged.
func FromMySQL(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDupEntry:
			return Conflict("duplicate entry")
		case mysqlNoReferenced:
			return BadRequest("referenced resource does not exist")
		case mysqlBadNull:
			return BadRequest("missing required field")
		}
	}
	return Internal(err)
}
