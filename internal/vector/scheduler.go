// Package vector drives the decode of one point set: it walks the
// CompressedVector section packet by packet, interleaving one bit-pack
// decoder per requested stream and delivering complete record batches to
// the caller.
package vector

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lidarlab/go-e57/internal/binary"
	"github.com/lidarlab/go-e57/internal/bitpack"
	"github.com/lidarlab/go-e57/internal/packet"
	"github.com/lidarlab/go-e57/internal/proto"
)

// Errors reported by the scheduler.
var (
	ErrTruncated    = errors.New("compressed vector section ended prematurely")
	ErrConsumerStop = errors.New("consume callback requested stop")
)

// Field routes one component stream into the caller's interleaved output
// buffer: item i of the batch lands at Buffer[Offset+Stride*i].
type Field struct {
	Offset int
	Stride int

	// Stream indexes the point set's components.
	Stream int
}

// Args parameterizes one decode run.
type Args struct {
	Buffer   []float32
	Fields   []Field
	Capacity int

	// Consume is invoked once per completed batch, in record order. A
	// false return stops the decode.
	Consume func(pointCount int) bool
}

// streamState tracks one field's decode position across packets.
type streamState struct {
	// current is the starting offset of the packet the stream is decoding
	// from; nextPacket is where to look once it runs dry.
	current    uint64
	nextPacket uint64

	items        int
	bitsConsumed uint32
}

// ReadPoints decodes all records of the point set, batch by batch.
// Streams advance through the section's data packets independently: a
// component that packs fewer bits per record drains each packet later
// than a wider one, so every stream tracks its own packet cursor.
func ReadPoints(pgr *binary.Pager, log zerolog.Logger, pts *proto.PointSet, args Args) error {
	sh, err := packet.ReadSectionHeader(pgr, log, pts.FileOffset)
	if err != nil {
		return err
	}

	pr := packet.NewReader(pgr, log, len(pts.Components))
	streams := make([]streamState, len(args.Fields))
	for i := range streams {
		streams[i] = streamState{
			nextPacket:   sh.DataPhysicalOffset,
			bitsConsumed: bitpack.AllBitsRead,
		}
	}

	pointsLeft := pts.RecordCount
	for pointsLeft > 0 {
		batch := args.Capacity
		if uint64(batch) > pointsLeft {
			batch = int(pointsLeft)
		}
		for i := range streams {
			streams[i].items = 0
		}

		for {
			done := true
			for i := range streams {
				s := &streams[i]
				if s.items == batch {
					continue
				}
				field := args.Fields[i]
				comp := &pts.Components[field.Stream]

				if s.bitsConsumed == bitpack.AllBitsRead {
					if err := advance(pr, &sh, s); err != nil {
						return err
					}
				}

				// Re-request the stream's current packet; this is a cache
				// hit unless another stream pulled a different packet
				// into the shared scratch buffer in between.
				pk, err := pr.Read(s.current)
				if err != nil {
					return err
				}

				desc := bitpack.Desc{
					MaxItems:      batch,
					StreamOffset:  pk.StreamOff[field.Stream],
					BitsAvailable: pk.BitsAvailable(field.Stream),
				}
				prev := s.items
				st := bitpack.Decode(comp, pk.Data, desc, bitpack.State{
					ItemsWritten: s.items,
					BitsConsumed: s.bitsConsumed,
				}, bitpack.Dst{
					Buf:    args.Buffer,
					Offset: field.Offset,
					Stride: field.Stride,
				})
				s.items, s.bitsConsumed = st.ItemsWritten, st.BitsConsumed

				if s.bitsConsumed != bitpack.AllBitsRead && s.items == prev {
					return fmt.Errorf("%w: stream %d stalled at item %d", packet.ErrMalformed, field.Stream, prev)
				}
				if s.items < batch {
					done = false
				}
			}
			if done {
				break
			}
		}

		log.Trace().Int("batch", batch).Uint64("remaining", pointsLeft-uint64(batch)).Msg("batch decoded")
		if !args.Consume(batch) {
			return ErrConsumerStop
		}
		pointsLeft -= uint64(batch)
	}
	return nil
}

// advance moves a dry stream to the next data packet in the section,
// skipping empty and index padding packets.
func advance(pr *packet.Reader, sh *packet.SectionHeader, s *streamState) error {
	off := s.nextPacket
	for {
		if off >= sh.PhysicalEnd {
			return fmt.Errorf("%w: need packet at 0x%x, section ends at 0x%x", ErrTruncated, off, sh.PhysicalEnd)
		}
		pk, err := pr.Read(off)
		if err != nil {
			return err
		}
		if pk.Kind == packet.KindData {
			s.current = off
			s.nextPacket = pk.Next
			s.bitsConsumed = 0
			return nil
		}
		off = pk.Next
	}
}
