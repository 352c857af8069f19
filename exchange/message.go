package exchange

import (
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

const (
	// DeltaTopic is the gossip topic for incremental updates.
	DeltaTopic = "nodeprops/1/delta"
	// InitProtocol is the stream protocol for the initial exchange with a new peer.
	InitProtocol = "/nodeprops/1/init"

	// MaxEntries is the maximum number of records in a single message.
	MaxEntries = 1 << 16
)

// ErrUnknownMessage is returned for messages of a type that is not expected on the channel.
var ErrUnknownMessage = errors.New("unknown message type")

// MessageType tells the receiver how to process a message.
type MessageType uint8

const (
	// TypeInit carries the knowledge of a node to a new peer. The receiver replies
	// with the complementing knowledge as a TypeDelta message.
	TypeInit MessageType = 1
	// TypeDelta carries records that were created or accepted since the last message.
	TypeDelta MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case TypeInit:
		return "init"
	case TypeDelta:
		return "delta"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Message is the wire format of both exchange channels.
type Message struct {
	Type    MessageType
	// Sender is the node that published the delta. Gossip deduplicates by content,
	// so it keeps the delta republished by a relay distinct from the one it received.
	Sender  types.NodeID
	Entries []types.NodeProperty `scale:"max=65536"`
}

// EncodeScale implements scale codec interface.
func (m *Message) EncodeScale(enc *scale.Encoder) (total int, err error) {
	{
		n, err := scale.EncodeCompact8(enc, uint8(m.Type))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Sender.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, m.Entries, MaxEntries)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (m *Message) DecodeScale(dec *scale.Decoder) (total int, err error) {
	{
		field, n, err := scale.DecodeCompact8(dec)
		if err != nil {
			return total, err
		}
		total += n
		m.Type = MessageType(field)
	}
	{
		n, err := m.Sender.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[types.NodeProperty](dec, MaxEntries)
		if err != nil {
			return total, err
		}
		total += n
		m.Entries = field
	}
	return total, nil
}
