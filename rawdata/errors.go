package rawdata

import (
	"fmt"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

// ConfigFormatError is returned when a config can't be read, or doesn't follow the config schema
type ConfigFormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *ConfigFormatError) Error() string {
	s := "config format error"
	if e.Source != "" {
		s += fmt.Sprintf(" in %q", e.Source)
	}
	if e.Reason != "" {
		s += ": " + e.Reason
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// UnknownGeometryClassError is returned for a geometry token outside the known vocabulary
type UnknownGeometryClassError struct {
	Name string
}

func (e *UnknownGeometryClassError) Error() string {
	return fmt.Sprintf("unknown geometry class: %q", e.Name)
}

// RenderError is returned when a table of a query model can't be rendered
type RenderError struct {
	Table  GeometryClass
	Reason string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("couldn't render table %q: %s", e.Table, e.Reason)
}

// RenderErrors collects the errors of all the tables that couldn't be rendered
type RenderErrors []*RenderError

func (errs RenderErrors) Error() string {
	var s []string
	for _, err := range errs {
		s = append(s, err.Error())
	}
	return strings.Join(s, "; ")
}

// ErrOrNil returns nil if there are no errors
func (errs RenderErrors) ErrOrNil() errorsx.Error {
	if len(errs) == 0 {
		return nil
	}
	return errorsx.Wrap(errs)
}

func IsConfigFormatError(err error) bool {
	_, ok := errorsx.Cause(err).(*ConfigFormatError)
	return ok
}

func IsUnknownGeometryClassError(err error) bool {
	_, ok := errorsx.Cause(err).(*UnknownGeometryClassError)
	return ok
}

// IsRenderError returns true for a single render error or an aggregate of them
func IsRenderError(err error) bool {
	switch errorsx.Cause(err).(type) {
	case *RenderError, RenderErrors:
		return true
	default:
		return false
	}
}
