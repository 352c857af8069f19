package nodeprops

import "github.com/spacemeshos/go-nodeprops/common/types"

// DisplayNameKey is the property under which nodes publish a human readable name.
const DisplayNameKey = "displayName"

// WatchDisplayNames calls fn whenever a node publishes or deletes its display name.
// A deleted name is reported as an empty string. Unlike high-level listeners the
// watcher sees names of unreachable nodes too, as soon as they are received.
func (s *Service) WatchDisplayNames(fn func(id types.NodeID, name string)) *Subscription {
	return s.AddRawNodePropertiesChangeListener(func(records []types.NodeProperty) {
		for _, p := range records {
			if p.Key == DisplayNameKey {
				fn(p.Owner, p.Value)
			}
		}
	})
}
