// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to tell
// missing rows and uniqueness violations apart from driver failures.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key (for
// example a second user with the same email).
var ErrDuplicate = errors.New("duplicate")

// ErrStaleWrite is returned by owner-scoped updates that matched no row,
// i.e. the row vanished or changed owner between read and write.
var ErrStaleWrite = errors.New("stale write")

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
