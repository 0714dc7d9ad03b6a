package bdxplot

import "fmt"

// ConfigError reports a malformed or contradictory analysis configuration.
// It is raised before any I/O takes place.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Msg }

func Configf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// DataError reports a missing or corrupt input stream or file.
type DataError struct {
	Path string
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data access error on %q: %v", e.Path, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

func DataErr(path string, err error) error {
	if err == nil {
		return nil
	}
	return &DataError{Path: path, Err: err}
}

// ComputeError reports degenerate input to a numerical step, such as an
// exposure estimate over zero jobs.
type ComputeError struct {
	Msg string
}

func (e *ComputeError) Error() string { return "computation error: " + e.Msg }

func Computef(format string, args ...interface{}) error {
	return &ComputeError{Msg: fmt.Sprintf(format, args...)}
}
