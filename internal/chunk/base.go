package chunk

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

// Save flattens every tube in the base chunk into the bit-exact base
// format spec.md §6 fixes: records in ascending tube-id order, each
// prefixed by its tube's id as an 8-byte big-endian integer (entwine's
// Tube::saveBase). Base-range ids always fit uint64 (shallower than
// depth ~21), unlike cold-range ids which need model.Id's big.Int
// backing.
func (b *BaseChunk) Save(pointSize uint32, infoPool *pool.Pool[pool.InfoNode]) ([]byte, error) {
	keys := b.tubes.Keys()
	ids := make([]model.Id, 0, len(keys))
	for _, k := range keys {
		id, ok := model.IdFromString(k)
		if !ok {
			return nil, fmt.Errorf("chunk: corrupt base tube key %q", k)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })

	var out []byte
	for _, id := range ids {
		tube := b.tubes.Get(id.String())
		if tube == nil || tube.Empty() {
			continue
		}
		tubeID, err := idToUint64(id)
		if err != nil {
			return nil, err
		}
		out = append(out, tube.SaveBase(tubeID, pointSize, infoPool)...)
	}
	return out, nil
}

// Load parses Save's bit-exact layout back into the base chunk's tube
// map. schema re-extracts each record's point from its raw bytes.
func (b *BaseChunk) Load(data []byte, pointSize uint32, schema model.Schema, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode]) error {
	recSize := 8 + int(pointSize)
	if recSize == 8 {
		return nil
	}
	if len(data)%recSize != 0 {
		return fmt.Errorf("chunk: base chunk data length %d not a multiple of record size %d", len(data), recSize)
	}

	tickByTube := make(map[uint64]uint64)
	for off := 0; off < len(data); off += recSize {
		tubeID := binary.BigEndian.Uint64(data[off : off+8])
		rec := data[off+8 : off+recSize]

		id := model.IdFromUint64(tubeID)
		tube := b.Tube(id)
		point := schema.ExtractPoint(rec)
		handle, err := pool.AcquireInfo(infoPool, dataPool, rec, point, 0)
		if err != nil {
			return fmt.Errorf("chunk: reacquiring base tube %d: %w", tubeID, err)
		}
		node := handle.Take()
		tick := tickByTube[tubeID]
		if err := tube.AddCell(tick, node); err != nil {
			infoPool.Release(node)
			return fmt.Errorf("chunk: base tube %d: %w", tubeID, err)
		}
		tickByTube[tubeID] = tick + 1
	}
	return nil
}

func idToUint64(id model.Id) (uint64, error) {
	s := id.String()
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chunk: base tube id %q does not fit uint64: %w", s, err)
	}
	return v, nil
}
