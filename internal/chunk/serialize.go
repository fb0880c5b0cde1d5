package chunk

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

// Cold chunk wire format is self-describing (tube id length-prefixed,
// ahead of that tube's concatenated records): unlike the base chunk's
// bit-exact "8-byte tube id then pointSize bytes, every record" layout
// (fixed by spec as entwine/tree/cell.cpp's Tube::saveBase), the source
// material leaves cold-chunk-on-disk layout unspecified beyond "records
// of pointSize bytes" — the only hard requirement is that save then load
// round-trips to a structurally identical chunk. A self-describing framing
// lets a cold chunk hold a sparse, unbounded set of tube ids (big.Int
// strings, not the base chunk's dense small-integer range) without having
// to either store every possible id or invent a packing scheme for the
// sparse ones.
//
// Per tube: uint32 id-string length, id bytes, uint32 record count,
// record count * pointSize record bytes, assigned ticks 0..recordCount-1
// in storage order (tick order within a tube is not otherwise meaningful
// once a chunk round-trips through disk).

// SaveChunk serializes every tube in c, in ascending numeric id order, and
// releases each drained cell's info node back into infoPool as it goes
// (mirroring Tube.Save's release-as-you-go behavior).
func SaveChunk(c *Chunk, pointSize uint32, infoPool *pool.Pool[pool.InfoNode]) ([]byte, error) {
	keys := c.tubes.Keys()
	ids := make([]model.Id, 0, len(keys))
	for _, k := range keys {
		id, ok := model.IdFromString(k)
		if !ok {
			return nil, fmt.Errorf("chunk: corrupt tube key %q", k)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })

	var out []byte
	for _, id := range ids {
		key := id.String()
		tube := c.tubes.Get(key)
		if tube == nil || tube.Empty() {
			continue
		}
		records := tube.Save(pointSize, infoPool)
		recCount := uint32(0)
		if pointSize > 0 {
			recCount = uint32(len(records) / int(pointSize))
		}

		var header [8]byte
		binary.BigEndian.PutUint32(header[0:4], uint32(len(key)))
		out = append(out, header[0:4]...)
		out = append(out, key...)
		binary.BigEndian.PutUint32(header[4:8], recCount)
		out = append(out, header[4:8]...)
		out = append(out, records...)
	}
	return out, nil
}

// deserializeChunk parses SaveChunk's framing back into c's tube map.
// Each record is re-acquired through infoPool/dataPool (rather than
// installed as bare bytes) so that a reloaded chunk's cells are
// indistinguishable from freshly-inserted ones — in particular so they
// can later be displaced, re-released, and re-saved through the exact
// same pool machinery. schema re-extracts each record's geometric
// position, since only raw bytes survive the round trip to disk.
func deserializeChunk(c *Chunk, data []byte, pointSize uint32, schema model.Schema, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode]) error {
	off := 0
	for off < len(data) {
		if off+4 > len(data) {
			return fmt.Errorf("chunk: truncated id length at offset %d", off)
		}
		idLen := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4
		if off+idLen > len(data) {
			return fmt.Errorf("chunk: truncated id at offset %d", off)
		}
		key := string(data[off : off+idLen])
		off += idLen

		if off+4 > len(data) {
			return fmt.Errorf("chunk: truncated record count at offset %d", off)
		}
		recCount := int(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4

		id, ok := model.IdFromString(key)
		if !ok {
			return fmt.Errorf("chunk: corrupt tube key %q", key)
		}
		tube := c.Tube(id)
		for tick := 0; tick < recCount; tick++ {
			if off+int(pointSize) > len(data) {
				return fmt.Errorf("chunk: truncated record %d for tube %q", tick, key)
			}
			rec := data[off : off+int(pointSize)]
			off += int(pointSize)

			point := schema.ExtractPoint(rec)
			handle, err := pool.AcquireInfo(infoPool, dataPool, rec, point, 0)
			if err != nil {
				return fmt.Errorf("chunk: reacquiring tube %q record %d: %w", key, tick, err)
			}
			node := handle.Take()
			if err := tube.AddCell(uint64(tick), node); err != nil {
				infoPool.Release(node)
				return fmt.Errorf("chunk: tube %q: %w", key, err)
			}
		}
	}
	return nil
}
