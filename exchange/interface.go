package exchange

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

//go:generate mockgen -typed -package=mocks -destination=./mocks/mocks.go -source=./interface.go

type nodeService interface {
	OnRawPropertiesAddedOrModified([]types.NodeProperty) []types.NodeProperty
	KnowledgeToShare() []types.NodeProperty
	ComplementingKnowledge([]types.NodeProperty) []types.NodeProperty
}

type requester interface {
	Request(context.Context, peer.ID, []byte) ([]byte, error)
}

type publisher interface {
	Publish(context.Context, string, []byte) error
}
