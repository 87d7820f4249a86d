// Package errs holds the error kinds shared by the pipeline stages.
// Callers wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
package errs

import "errors"

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInputEmpty     = errors.New("input is empty")
	ErrAssetMissing   = errors.New("asset missing")
	ErrToolMissing    = errors.New("external tool missing")
	ErrToolFailed     = errors.New("external tool failed")
	ErrEncodingFailed = errors.New("video encoding failed")
)
