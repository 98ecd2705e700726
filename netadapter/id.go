package netadapter

import (
	"encoding/hex"

	"github.com/epic-project/epicd/util/random"
)

// idLength is the size in bytes of a peer ID. Sixteen bytes of entropy is
// enough to make collision between two simultaneously-connected peers
// vanishingly unlikely without pulling in a UUID library the rest of the
// pack never imports.
const idLength = 16

// ID identifies one side of a connection, independent of its network
// address. Grounded on the teacher's netadapter.ID/id.ID (a peer is known
// to the rest of the adapter by this value, not by its net.Conn).
type ID [idLength]byte

// GenerateID returns a fresh, randomly-generated ID.
func GenerateID() (*ID, error) {
	b, err := random.Bytes(idLength)
	if err != nil {
		return nil, err
	}
	var id ID
	copy(id[:], b)
	return &id, nil
}

func (id *ID) String() string {
	if id == nil {
		return "<unknown>"
	}
	return hex.EncodeToString(id[:])
}

// IsEqual reports whether id and other name the same peer.
func (id *ID) IsEqual(other *ID) bool {
	if id == nil || other == nil {
		return id == other
	}
	return *id == *other
}
