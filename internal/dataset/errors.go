package dataset

import (
	"fmt"
	"strings"
)

// ResourceNotFoundError reports a dataset identifier that resolved to no
// loadable resources.
type ResourceNotFoundError struct {
	DatasetID string
	Filters   []string
	Err       error
}

func (e *ResourceNotFoundError) Error() string {
	msg := fmt.Sprintf("dataset %q has no loadable resources", e.DatasetID)
	if len(e.Filters) > 0 {
		msg += fmt.Sprintf(" matching [%s]", strings.Join(e.Filters, ","))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResourceNotFoundError) Unwrap() error {
	return e.Err
}

// LoadError reports a resource that could not be materialized as a table,
// including two resources that map to the same table name.
type LoadError struct {
	DatasetID string
	Resource  string
	Table     string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q from dataset %q into table %q: %v", e.Resource, e.DatasetID, e.Table, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
