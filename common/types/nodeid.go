package types

import (
	"sort"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// NodeIDMaxLength is the upper bound for the encoded length of a NodeID.
	NodeIDMaxLength = 128
)

// NodeID identifies a node in the mesh. For networked nodes it is the
// string form of the libp2p peer id.
type NodeID string

// EmptyNodeID is a canonical empty NodeID.
var EmptyNodeID NodeID

// String returns a string representation of the NodeID, for logging purposes.
// It implements the Stringer interface.
func (id NodeID) String() string {
	return string(id)
}

// ShortString returns the last 10 characters of the ID, for logging purposes.
func (id NodeID) ShortString() string {
	s := string(id)
	if len(s) <= 10 {
		return s
	}
	return s[len(s)-10:]
}

// Empty returns true if the NodeID is not set.
func (id NodeID) Empty() bool {
	return id == EmptyNodeID
}

// Field returns a log field.
func (id NodeID) Field() zap.Field { return zap.Stringer("node_id", id) }

// EncodeScale implements scale codec interface.
func (id *NodeID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeStringWithLimit(e, string(*id), NodeIDMaxLength)
}

// DecodeScale implements scale codec interface.
func (id *NodeID) DecodeScale(d *scale.Decoder) (int, error) {
	s, n, err := scale.DecodeStringWithLimit(d, NodeIDMaxLength)
	if err != nil {
		return n, err
	}
	*id = NodeID(s)
	return n, nil
}

// NodeIDs is a list of NodeID that can be logged as an array.
type NodeIDs []NodeID

// MarshalLogArray implements zapcore.ArrayMarshaler.
func (ids NodeIDs) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, id := range ids {
		enc.AppendString(id.ShortString())
	}
	return nil
}

// SortNodeIDs sorts a list of NodeID in lexicographic order, in-place.
func SortNodeIDs(ids []NodeID) []NodeID {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
