package persist

import (
	"errors"
	"fmt"
)

// LoadError reports a data directory that could not be restored.
type LoadError struct {
	Dir    string
	Path   string // offending file, empty when the directory itself failed
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load %s", e.Dir)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// JobError reports a single failed write or removal.
type JobError struct {
	Job Job
	Err error
}

func (e *JobError) Error() string {
	op := "write"
	if e.Job.Remove {
		op = "remove"
	}
	return fmt.Sprintf("%s %s: %v", op, e.Job.Path, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is or wraps a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
