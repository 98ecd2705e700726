package blockdag

import (
	"testing"

	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

func TestVertexEncodeDecodeRoundTrip(t *testing.T) {
	block := &wire.MsgBlock{Header: wire.BlockHeader{Version: wire.BlockVersion}}
	v := &Vertex{
		BlockHash:        daghash.Hash{1, 2, 3},
		Height:           7,
		CumulativeReward: 1000,
		MinerChainHeight: 3,
		IsMilestone:      true,
		IsRedeemed:       NotYetRedeemed,
		Validity:         []Validity{ValidityValid, ValidityInvalid, ValidityUnknown},
		Block:            block,
	}

	encoded := EncodeVertex(v)
	decoded, err := DecodeVertex(encoded, block)
	if err != nil {
		t.Fatalf("DecodeVertex: unexpected error: %v", err)
	}

	if decoded.BlockHash != v.BlockHash {
		t.Fatalf("BlockHash = %v, want %v", decoded.BlockHash, v.BlockHash)
	}
	if decoded.Height != v.Height || decoded.CumulativeReward != v.CumulativeReward ||
		decoded.MinerChainHeight != v.MinerChainHeight {
		t.Fatal("scalar fields did not round-trip")
	}
	if decoded.IsMilestone != v.IsMilestone || decoded.IsRedeemed != v.IsRedeemed {
		t.Fatal("flags did not round-trip")
	}
	if len(decoded.Validity) != len(v.Validity) {
		t.Fatalf("Validity length = %d, want %d", len(decoded.Validity), len(v.Validity))
	}
	for i := range v.Validity {
		if decoded.Validity[i] != v.Validity[i] {
			t.Fatalf("Validity[%d] = %v, want %v", i, decoded.Validity[i], v.Validity[i])
		}
	}
	if decoded.Block != block {
		t.Fatal("Block should be the block passed to DecodeVertex")
	}
}

func TestDecodeVertexRejectsTruncatedRecord(t *testing.T) {
	if _, err := DecodeVertex([]byte{1, 2, 3}, nil); err == nil {
		t.Fatal("DecodeVertex: expected an error on a truncated record")
	}
}
