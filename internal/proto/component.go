// Package proto models the decoded prototype of a point set: the ordered
// component descriptors that describe one record, and the point-set
// metadata that locates its CompressedVector section.
package proto

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// ErrDescriptor is returned when a component descriptor fails validation.
var ErrDescriptor = errors.New("invalid component descriptor")

// Role is the semantic meaning of a component, distinct from its numeric
// type. The set is closed; the names match the XML element names that
// declare each component inside a prototype.
type Role uint8

const (
	CartesianX Role = iota
	CartesianY
	CartesianZ
	SphericalRange
	SphericalAzimuth
	SphericalElevation
	RowIndex
	ColumnIndex
	ReturnCount
	ReturnIndex
	TimeStamp
	Intensity
	ColorRed
	ColorGreen
	ColorBlue
	CartesianInvalidState
	SphericalInvalidState
	IsTimeStampInvalid
	IsIntensityInvalid
	IsColorInvalid
	roleCount
)

var roleNames = [roleCount]string{
	CartesianX:            "cartesianX",
	CartesianY:            "cartesianY",
	CartesianZ:            "cartesianZ",
	SphericalRange:        "sphericalRange",
	SphericalAzimuth:      "sphericalAzimuth",
	SphericalElevation:    "sphericalElevation",
	RowIndex:              "rowIndex",
	ColumnIndex:           "columnIndex",
	ReturnCount:           "returnCount",
	ReturnIndex:           "returnIndex",
	TimeStamp:             "timeStamp",
	Intensity:             "intensity",
	ColorRed:              "colorRed",
	ColorGreen:            "colorGreen",
	ColorBlue:             "colorBlue",
	CartesianInvalidState: "cartesianInvalidState",
	SphericalInvalidState: "sphericalInvalidState",
	IsTimeStampInvalid:    "isTimeStampInvalid",
	IsIntensityInvalid:    "isIntensityInvalid",
	IsColorInvalid:        "isColorInvalid",
}

// String returns the XML element name for the role.
func (r Role) String() string {
	if r < roleCount {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// RoleByName maps an XML element name to its role.
func RoleByName(name string) (Role, bool) {
	for r, n := range roleNames {
		if n == name {
			return Role(r), true
		}
	}
	return 0, false
}

// Type is the numeric encoding of a component.
type Type uint8

const (
	// TypeNone marks a component whose type attribute has not been seen yet.
	TypeNone Type = iota
	TypeInteger
	TypeScaledInteger
	TypeFloat
	TypeDouble
)

// String returns a display name for the type.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeInteger:
		return "Integer"
	case TypeScaledInteger:
		return "ScaledInteger"
	case TypeFloat:
		return "Float"
	case TypeDouble:
		return "Double"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// IsInteger reports whether the type is one of the integer variants.
func (t Type) IsInteger() bool {
	return t == TypeInteger || t == TypeScaledInteger
}

// Component describes one stream of a point record.
type Component struct {
	Role Role
	Type Type

	// Integer and ScaledInteger bounds. A decoded raw value is added to
	// Min; for ScaledInteger the result is further mapped through
	// Scale*value+Offset.
	Min      int64
	Max      int64
	Scale    float64
	Offset   float64
	BitWidth uint8

	// Float and Double bounds.
	RealMin float64
	RealMax float64
}

// InitInteger resets the component to an empty integer descriptor whose
// bounds are refined by subsequent minimum/maximum attributes.
func (c *Component) InitInteger(t Type) {
	c.Type = t
	c.Min = math.MaxInt64
	c.Max = math.MinInt64
	c.Scale = 1
	c.Offset = 0
	c.BitWidth = 0
	c.RealMin = 0
	c.RealMax = 0
}

// InitReal resets the component to an empty real descriptor.
func (c *Component) InitReal(t Type) {
	c.Type = t
	c.RealMin = math.MaxFloat64
	c.RealMax = -math.MaxFloat64
	c.Min = 0
	c.Max = 0
	c.Scale = 1
	c.Offset = 0
	c.BitWidth = 0
}

// Finalize validates the descriptor and, for integer variants, computes
// the packed bit width. A zero-span component has bit width 0 and always
// decodes to Min.
func (c *Component) Finalize() error {
	switch c.Type {
	case TypeNone:
		return fmt.Errorf("%w: %s has no type", ErrDescriptor, c.Role)
	case TypeInteger, TypeScaledInteger:
		if c.Max < c.Min {
			return fmt.Errorf("%w: %s minimum %d exceeds maximum %d", ErrDescriptor, c.Role, c.Min, c.Max)
		}
		if c.Scale == 0 {
			return fmt.Errorf("%w: %s has zero scale", ErrDescriptor, c.Role)
		}
		// The span is treated as unsigned so a full-range component maps
		// to bit width 64.
		c.BitWidth = uint8(bits.Len64(uint64(c.Max) - uint64(c.Min)))
	case TypeFloat, TypeDouble:
		if c.RealMax < c.RealMin {
			return fmt.Errorf("%w: %s minimum %g exceeds maximum %g", ErrDescriptor, c.Role, c.RealMin, c.RealMax)
		}
	}
	return nil
}

// PointSet is a CompressedVector section plus its prototype.
type PointSet struct {
	// Name and GUID identify the scan in the XML document; either may be
	// empty.
	Name string
	GUID string

	// FileOffset is the physical offset of the section header.
	FileOffset uint64

	// RecordCount is the number of records in the section.
	RecordCount uint64

	// Components lists the prototype in declaration order; the order
	// defines the stream index used during decoding.
	Components []Component
}
