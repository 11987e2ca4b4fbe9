package e57

import (
	"fmt"

	"github.com/lidarlab/go-e57/internal/vector"
)

// Field routes one component stream into the interleaved output buffer:
// item i of a batch lands at Buffer[Offset+Stride*i].
type Field = vector.Field

// ReadArgs parameterizes one ReadPoints call.
type ReadArgs struct {
	// Set selects the point set, indexing PointSets().
	Set int

	// Buffer receives decoded values; it must accommodate Capacity items
	// of every field's lane.
	Buffer []float32

	// Fields names the output lanes, one per decoded component stream.
	Fields []Field

	// Capacity is the batch size in records.
	Capacity int

	// Consume is invoked once per completed batch, in record order, with
	// the number of records present in Buffer. Returning false stops the
	// decode and surfaces ErrConsumerStop.
	Consume func(pointCount int) bool
}

// ReadPoints decodes the selected point set into args.Buffer, invoking
// args.Consume once per batch of up to args.Capacity records. The call is
// synchronous; records are delivered in order, and within a record the
// components land in the lanes named by args.Fields.
func (f *File) ReadPoints(args ReadArgs) error {
	if f.closed {
		return ErrClosed
	}
	if f.decoding {
		return fmt.Errorf("e57: concurrent ReadPoints on one File")
	}
	if args.Set < 0 || args.Set >= len(f.points) {
		return fmt.Errorf("e57: point set %d out of range (%d sets)", args.Set, len(f.points))
	}
	pts := &f.points[args.Set]
	if len(pts.Components) == 0 {
		return fmt.Errorf("%w: point set %d has no components", ErrUnsupported, args.Set)
	}
	if err := checkArgs(&args, len(pts.Components)); err != nil {
		return err
	}

	f.decoding = true
	defer func() { f.decoding = false }()

	err := vector.ReadPoints(f.pager, f.log, pts, vector.Args{
		Buffer:   args.Buffer,
		Fields:   args.Fields,
		Capacity: args.Capacity,
		Consume:  args.Consume,
	})
	if err != nil {
		f.log.Error().Int("set", args.Set).Err(err).Msg("point read failed")
	}
	return err
}

// checkArgs validates a ReadArgs against the selected point set.
func checkArgs(args *ReadArgs, components int) error {
	if args.Capacity < 1 {
		return fmt.Errorf("e57: capacity %d is not positive", args.Capacity)
	}
	if len(args.Fields) == 0 {
		return fmt.Errorf("e57: no output fields")
	}
	if args.Consume == nil {
		return fmt.Errorf("e57: nil consume callback")
	}
	seen := make(map[int]bool, len(args.Fields))
	for i, fd := range args.Fields {
		if fd.Stream < 0 || fd.Stream >= components {
			return fmt.Errorf("e57: field %d stream %d out of range (%d components)", i, fd.Stream, components)
		}
		if seen[fd.Stream] {
			return fmt.Errorf("e57: field %d duplicates stream %d", i, fd.Stream)
		}
		seen[fd.Stream] = true
		if fd.Stride < 1 {
			return fmt.Errorf("e57: field %d stride %d is not positive", i, fd.Stride)
		}
		if fd.Offset < 0 {
			return fmt.Errorf("e57: field %d offset %d is negative", i, fd.Offset)
		}
		if need := fd.Offset + fd.Stride*(args.Capacity-1) + 1; need > len(args.Buffer) {
			return fmt.Errorf("e57: buffer holds %d floats, field %d needs %d", len(args.Buffer), i, need)
		}
	}
	return nil
}
