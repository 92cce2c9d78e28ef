package utils

import "errors"

// ErrorRecordNotFound is the storage-agnostic "no such row" returned by
// the model lookup helpers, so callers do not import gorm just to test
// for a miss.
var ErrorRecordNotFound = errors.New("record not found")

// ErrorPanic aborts startup on errors that leave the process unusable,
// such as a failed schema migration.
func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
