package xmlbind

import (
	"fmt"

	"github.com/lidarlab/go-e57/internal/proto"
)

// finalize flattens the collected points frames into point sets with
// contiguous component arrays and computed bit widths. Runs once after
// the token stream ends.
func (b *binder) finalize() ([]proto.PointSet, error) {
	sets := make([]proto.PointSet, 0, len(b.sets))
	for i := range b.sets {
		pf := &b.sets[i]
		components := make([]proto.Component, len(pf.components))
		copy(components, pf.components)
		for j := range components {
			if err := components[j].Finalize(); err != nil {
				return nil, fmt.Errorf("point set %d: %w", i, err)
			}
		}
		sets = append(sets, proto.PointSet{
			Name:        pf.name,
			GUID:        pf.guid,
			FileOffset:  pf.fileOffset,
			RecordCount: pf.recordCount,
			Components:  components,
		})
		b.log.Debug().
			Int("set", i).
			Str("name", pf.name).
			Uint64("records", pf.recordCount).
			Int("components", len(components)).
			Msg("point set prototype")
	}
	return sets, nil
}
