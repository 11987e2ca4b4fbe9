package e57

import "github.com/lidarlab/go-e57/internal/proto"

// PointSet is a CompressedVector section plus its prototype: the ordered
// component descriptors that describe one record.
type PointSet = proto.PointSet

// Component describes one stream of a point record.
type Component = proto.Component

// Role is the semantic meaning of a component.
type Role = proto.Role

// Type is the numeric encoding of a component.
type Type = proto.Type

// Component roles.
const (
	CartesianX            = proto.CartesianX
	CartesianY            = proto.CartesianY
	CartesianZ            = proto.CartesianZ
	SphericalRange        = proto.SphericalRange
	SphericalAzimuth      = proto.SphericalAzimuth
	SphericalElevation    = proto.SphericalElevation
	RowIndex              = proto.RowIndex
	ColumnIndex           = proto.ColumnIndex
	ReturnCount           = proto.ReturnCount
	ReturnIndex           = proto.ReturnIndex
	TimeStamp             = proto.TimeStamp
	Intensity             = proto.Intensity
	ColorRed              = proto.ColorRed
	ColorGreen            = proto.ColorGreen
	ColorBlue             = proto.ColorBlue
	CartesianInvalidState = proto.CartesianInvalidState
	SphericalInvalidState = proto.SphericalInvalidState
	IsTimeStampInvalid    = proto.IsTimeStampInvalid
	IsIntensityInvalid    = proto.IsIntensityInvalid
	IsColorInvalid        = proto.IsColorInvalid
)

// Component types.
const (
	TypeInteger       = proto.TypeInteger
	TypeScaledInteger = proto.TypeScaledInteger
	TypeFloat         = proto.TypeFloat
	TypeDouble        = proto.TypeDouble
)

// RoleByName maps an XML element name (e.g. "cartesianX") to its role.
func RoleByName(name string) (Role, bool) {
	return proto.RoleByName(name)
}
