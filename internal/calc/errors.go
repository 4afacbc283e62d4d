package calc

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies why a submitted feature was rejected.
type Kind int

// Rejection kinds, all caused by client input.
const (
	KindUnknown Kind = iota
	KindInvalidGeoJSON
	KindUnsupportedGeometryType
	KindInvalidGeometry
)

func (k Kind) String() string {
	switch k {
	case KindInvalidGeoJSON:
		return "InvalidGeoJSON"
	case KindUnsupportedGeometryType:
		return "UnsupportedGeometryType"
	case KindInvalidGeometry:
		return "InvalidGeometry"
	default:
		return "Unknown"
	}
}

// User-facing details, one per rejection.
const (
	detailNotFeature      = "Request payload is not a valid GeoJSON Feature."
	detailUnsupportedType = "GeoJSON Feature type is not supported by the API, only Polygon and Multipolygon are accepted types."
	detailBadPolygon      = "GeoJSON Feature geometry object is not a valid Polygon object."
	detailBadMultiPolygon = "GeoJSON Feature geometry object is not a valid MultiPolygon object."
)

// ValidationError is a classified rejection of client input.
type ValidationError struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *ValidationError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
}

func (e *ValidationError) Unwrap() error { return e.cause }

func reject(kind Kind, detail string, cause error) error {
	return &ValidationError{Kind: kind, Detail: detail, cause: cause}
}

// KindOf returns the rejection kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnknown
}

// IsInternal reports whether err signals a broken invariant rather than bad input.
func IsInternal(err error) bool {
	return errors.IsAssertionFailure(err)
}
