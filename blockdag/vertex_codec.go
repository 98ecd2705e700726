package blockdag

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// EncodeVertex serializes v's DAG-manager annotation for the VTX file
// family (§4.1): everything in Vertex except Block (kept in the BLK family
// under the same FilePos) and Milestone (only a milestone vertex carries
// one, and milestone snapshots are reconstructed from the chain's cached
// window rather than round-tripped through this record).
func EncodeVertex(v *Vertex) []byte {
	var buf bytes.Buffer
	buf.Write(v.BlockHash[:])

	var fixed [24]byte
	binary.LittleEndian.PutUint64(fixed[0:8], v.Height)
	binary.LittleEndian.PutUint64(fixed[8:16], v.CumulativeReward)
	binary.LittleEndian.PutUint64(fixed[16:24], v.MinerChainHeight)
	buf.Write(fixed[:])

	var flags byte
	if v.IsMilestone {
		flags |= 1
	}
	flags |= byte(v.IsRedeemed) << 1
	buf.WriteByte(flags)

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(v.Validity)))
	buf.Write(count[:])
	for _, validity := range v.Validity {
		buf.WriteByte(byte(validity))
	}

	return buf.Bytes()
}

// DecodeVertex parses a record written by EncodeVertex. block must be the
// corresponding record read from the BLK family at the same FilePos.
func DecodeVertex(b []byte, block *wire.MsgBlock) (*Vertex, error) {
	if len(b) < daghash.HashSize+24+1+4 {
		return nil, errors.New("blockdag: truncated vertex record")
	}

	v := &Vertex{Block: block}
	copy(v.BlockHash[:], b[:daghash.HashSize])
	b = b[daghash.HashSize:]

	v.Height = binary.LittleEndian.Uint64(b[0:8])
	v.CumulativeReward = binary.LittleEndian.Uint64(b[8:16])
	v.MinerChainHeight = binary.LittleEndian.Uint64(b[16:24])
	b = b[24:]

	flags := b[0]
	v.IsMilestone = flags&1 != 0
	v.IsRedeemed = RedemptionState(flags >> 1)
	b = b[1:]

	count := binary.LittleEndian.Uint32(b[0:4])
	b = b[4:]
	if uint32(len(b)) != count {
		return nil, errors.New("blockdag: vertex validity vector length mismatch")
	}
	v.Validity = make([]Validity, count)
	for i, raw := range b {
		v.Validity[i] = Validity(raw)
	}
	return v, nil
}
