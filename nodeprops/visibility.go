package nodeprops

import (
	"github.com/spacemeshos/go-nodeprops/common/types"
)

// Visible projects records onto the reachable nodes, dropping tombstones.
// Every reachable node that has no visible records is absent from the result.
func Visible(records []types.NodeProperty, reachable func(types.NodeID) bool) map[types.NodeID]map[string]string {
	rst := make(map[types.NodeID]map[string]string)
	for _, p := range records {
		if p.Deleted || !reachable(p.Owner) {
			continue
		}
		values, exist := rst[p.Owner]
		if !exist {
			values = make(map[string]string)
			rst[p.Owner] = values
		}
		values[p.Key] = p.Value
	}
	return rst
}

// isVisible reports whether a stored record is part of the visible projection.
func isVisible(p types.NodeProperty, exist, reachable bool) bool {
	return exist && reachable && !p.Deleted
}

// transition is the change of a single entry in the visible projection.
// A nil side means the entry was not visible.
type transition struct {
	before *types.NodeProperty
	after  *types.NodeProperty
}

func visibleTransition(prev types.NodeProperty, hadPrev bool, next types.NodeProperty, reachable bool) (transition, bool) {
	var tr transition
	if isVisible(prev, hadPrev, reachable) {
		tr.before = &prev
	}
	if isVisible(next, true, reachable) {
		tr.after = &next
	}
	return tr, tr.before != nil || tr.after != nil
}
