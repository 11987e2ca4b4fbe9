// Package xmlbind consumes the token stream of the embedded E57 XML
// document and builds the point-set prototypes it declares.
//
// The binder is event driven: it keeps a stack of open element frames,
// each tagged with a kind drawn from a closed set, and reacts to element
// enter/exit, attributes, and text according to the frame kind. Element
// names it does not know are pushed as Unknown frames and skipped, so
// unrelated parts of the document (poses, limits, images) pass through
// without special handling.
package xmlbind

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lidarlab/go-e57/internal/proto"
)

// Errors reported by the binder.
var (
	ErrSyntax   = errors.New("xml syntax error")
	ErrSemantic = errors.New("xml semantic error")
)

type frameKind uint8

const (
	kindUnknown frameKind = iota
	kindE57Root
	kindData3D
	kindVectorChild
	kindName
	kindGUID
	kindCartesianBounds
	kindXMin
	kindXMax
	kindYMin
	kindYMax
	kindZMin
	kindZMax
	kindPoints
	kindPrototype
	kindComponent
	kindImages2D
)

var kindByName = map[string]frameKind{
	"e57Root":         kindE57Root,
	"data3D":          kindData3D,
	"vectorChild":     kindVectorChild,
	"name":            kindName,
	"guid":            kindGUID,
	"cartesianBounds": kindCartesianBounds,
	"xMinimum":        kindXMin,
	"xMaximum":        kindXMax,
	"yMinimum":        kindYMin,
	"yMaximum":        kindYMax,
	"zMinimum":        kindZMin,
	"zMaximum":        kindZMax,
	"points":          kindPoints,
	"prototype":       kindPrototype,
	"images2D":        kindImages2D,
}

// bounds is the cartesianBounds rectangle. Parsed for diagnostics only;
// the payload is logged at element exit and not exported.
type bounds struct {
	xMin, xMax float64
	yMin, yMax float64
	zMin, zMax float64
}

// pointsFrame accumulates one points (CompressedVector) element.
type pointsFrame struct {
	name        string
	guid        string
	fileOffset  uint64
	recordCount uint64
	components  []proto.Component

	// ignore is set when the element's type attribute names something
	// other than a CompressedVector; the frame then produces no point set.
	ignore bool
}

type frame struct {
	kind frameKind

	bounds bounds
	points pointsFrame
	comp   proto.Component

	text []byte
}

// binder holds the parse state for one document.
type binder struct {
	log   zerolog.Logger
	stack []frame

	// collected points frames, in document order.
	sets []pointsFrame

	// identity of the enclosing vectorChild, attached to point sets as
	// they complete.
	scanName string
	scanGUID string
}

// Parse consumes the XML document and returns the point sets it declares,
// with descriptors finalized.
func Parse(log zerolog.Logger, xmlBytes []byte) ([]proto.PointSet, error) {
	b := &binder{log: log}
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := b.enter(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if err := b.exit(); err != nil {
				return nil, err
			}
		case xml.CharData:
			if err := b.text(t); err != nil {
				return nil, err
			}
		}
	}
	if len(b.stack) != 0 {
		return nil, fmt.Errorf("%w: %d unclosed elements", ErrSyntax, len(b.stack))
	}
	return b.finalize()
}

// enter pushes a frame for the element and applies its attributes.
func (b *binder) enter(el xml.StartElement) error {
	f := frame{kind: kindUnknown}

	name := el.Name.Local
	if k, ok := kindByName[name]; ok {
		f.kind = k
	} else if role, ok := proto.RoleByName(name); ok {
		// Element names that double as component roles seed the role of
		// a Component frame.
		f.kind = kindComponent
		f.comp = proto.Component{Role: role, Type: proto.TypeNone}
	}

	switch f.kind {
	case kindCartesianBounds:
		f.bounds = bounds{
			xMin: math.MaxFloat64, xMax: -math.MaxFloat64,
			yMin: math.MaxFloat64, yMax: -math.MaxFloat64,
			zMin: math.MaxFloat64, zMax: -math.MaxFloat64,
		}
	case kindPoints:
		f.points = pointsFrame{}
	}

	b.log.Trace().Int("depth", len(b.stack)).Str("element", name).Msg("enter")
	b.stack = append(b.stack, f)

	for _, attr := range el.Attr {
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			continue
		}
		if err := b.attribute(attr); err != nil {
			return err
		}
	}
	return nil
}

// attribute applies one attribute to the top frame. Attributes only carry
// meaning on Points and Component frames; everywhere else they are
// ignored.
func (b *binder) attribute(attr xml.Attr) error {
	f := &b.stack[len(b.stack)-1]
	key, val := attr.Name.Local, attr.Value

	switch f.kind {
	case kindPoints:
		return b.pointsAttribute(f, key, val)
	case kindComponent:
		return b.componentAttribute(f, key, val)
	}
	return nil
}

func (b *binder) pointsAttribute(f *frame, key, val string) error {
	switch key {
	case "type":
		if val != "CompressedVector" {
			b.log.Debug().Str("type", val).Msg("points element is not a compressed vector, skipping")
			f.points.ignore = true
		}
	case "fileOffset":
		v, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: points fileOffset %q: %v", ErrSemantic, val, err)
		}
		f.points.fileOffset = v
	case "recordCount":
		v, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: points recordCount %q: %v", ErrSemantic, val, err)
		}
		f.points.recordCount = v
	default:
		return fmt.Errorf("%w: unexpected attribute %q on points element", ErrSemantic, key)
	}
	return nil
}

func (b *binder) componentAttribute(f *frame, key, val string) error {
	c := &f.comp
	switch key {
	case "type":
		switch val {
		case "Integer":
			c.InitInteger(proto.TypeInteger)
		case "ScaledInteger":
			c.InitInteger(proto.TypeScaledInteger)
		case "Float":
			// Double precision unless narrowed by a precision attribute.
			c.InitReal(proto.TypeDouble)
		default:
			return fmt.Errorf("%w: %s has unknown type %q", ErrSemantic, c.Role, val)
		}

	case "minimum", "maximum":
		if c.Type == proto.TypeNone {
			return fmt.Errorf("%w: %s attribute %q precedes type", ErrSemantic, c.Role, key)
		}
		if c.Type.IsInteger() {
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: %s %s %q: %v", ErrSemantic, c.Role, key, val, err)
			}
			if key == "minimum" {
				c.Min = v
			} else {
				c.Max = v
			}
		} else {
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("%w: %s %s %q: %v", ErrSemantic, c.Role, key, val, err)
			}
			if key == "minimum" {
				c.RealMin = v
			} else {
				c.RealMax = v
			}
		}

	case "scale", "offset":
		if c.Type != proto.TypeScaledInteger {
			return fmt.Errorf("%w: %s attribute %q on %s component", ErrSemantic, c.Role, key, c.Type)
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%w: %s %s %q: %v", ErrSemantic, c.Role, key, val, err)
		}
		if key == "scale" {
			c.Scale = v
		} else {
			c.Offset = v
		}

	case "precision":
		if c.Type != proto.TypeFloat && c.Type != proto.TypeDouble {
			return fmt.Errorf("%w: %s precision on %s component", ErrSemantic, c.Role, c.Type)
		}
		switch val {
		case "single":
			c.Type = proto.TypeFloat
		case "singe":
			// Misspelling observed in real files; accepted as "single".
			b.log.Warn().Str("role", c.Role.String()).Msg(`precision "singe" treated as "single"`)
			c.Type = proto.TypeFloat
		case "double":
			c.Type = proto.TypeDouble
		default:
			return fmt.Errorf("%w: %s has unknown precision %q", ErrSemantic, c.Role, val)
		}

	default:
		return fmt.Errorf("%w: unexpected attribute %q on %s component", ErrSemantic, key, c.Role)
	}
	return nil
}

// text handles character data. Only cartesianBounds children and scan
// identity elements carry meaningful text; everything else is skipped.
func (b *binder) text(data xml.CharData) error {
	n := len(b.stack)
	if n == 0 {
		return nil
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return nil
	}
	f := &b.stack[n-1]

	if n >= 2 && b.stack[n-2].kind == kindCartesianBounds && f.kind >= kindXMin && f.kind <= kindZMax {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: cartesian bound %q: %v", ErrSemantic, s, err)
		}
		pb := &b.stack[n-2].bounds
		switch f.kind {
		case kindXMin:
			pb.xMin = v
		case kindXMax:
			pb.xMax = v
		case kindYMin:
			pb.yMin = v
		case kindYMax:
			pb.yMax = v
		case kindZMin:
			pb.zMin = v
		case kindZMax:
			pb.zMax = v
		}
		return nil
	}

	if f.kind == kindName || f.kind == kindGUID {
		f.text = append(f.text, s...)
	}
	return nil
}

// exit pops the top frame and applies its exit policy.
func (b *binder) exit() error {
	n := len(b.stack)
	if n == 0 {
		return fmt.Errorf("%w: unbalanced element exit", ErrSyntax)
	}
	f := &b.stack[n-1]

	switch f.kind {
	case kindCartesianBounds:
		b.log.Debug().
			Floats64("min", []float64{f.bounds.xMin, f.bounds.yMin, f.bounds.zMin}).
			Floats64("max", []float64{f.bounds.xMax, f.bounds.yMax, f.bounds.zMax}).
			Msg("cartesian bounds")

	case kindPoints:
		if !f.points.ignore {
			f.points.name = b.scanName
			f.points.guid = b.scanGUID
			b.sets = append(b.sets, f.points)
		}

	case kindComponent:
		// A component is only valid directly under prototype -> points.
		if n < 3 || b.stack[n-2].kind != kindPrototype || b.stack[n-3].kind != kindPoints {
			return fmt.Errorf("%w: component %s outside a points prototype", ErrSemantic, f.comp.Role)
		}
		pf := &b.stack[n-3]
		pf.points.components = append(pf.points.components, f.comp)

	case kindName:
		if n >= 2 && b.stack[n-2].kind == kindVectorChild {
			b.scanName = string(f.text)
		}

	case kindGUID:
		if n >= 2 && b.stack[n-2].kind == kindVectorChild {
			b.scanGUID = normalizeGUID(b.log, string(f.text))
		}

	case kindVectorChild:
		b.scanName, b.scanGUID = "", ""
	}

	b.stack = b.stack[:n-1]
	return nil
}

// normalizeGUID canonicalizes a guid string. E57 writers typically wrap
// guids in braces; malformed values are kept verbatim.
func normalizeGUID(log zerolog.Logger, s string) string {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")
	u, err := uuid.Parse(trimmed)
	if err != nil {
		log.Warn().Str("guid", s).Msg("scan guid is not a valid uuid")
		return s
	}
	return u.String()
}
