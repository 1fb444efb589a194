package domain

// WatchSet is the fixed set of chat IDs eligible for relay.
// Built once at startup and never mutated afterwards, so it is safe to
// share across goroutines without locking.
type WatchSet struct {
	ids map[int64]struct{}
}

// NewWatchSet builds a WatchSet from the configured chat ID list.
// Duplicates collapse to a single entry.
func NewWatchSet(chatIDs []int64) WatchSet {
	ids := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		ids[id] = struct{}{}
	}
	return WatchSet{ids: ids}
}

// Contains reports whether the chat ID is watched.
func (w WatchSet) Contains(chatID int64) bool {
	_, ok := w.ids[chatID]
	return ok
}

// Len returns the number of watched chats.
func (w WatchSet) Len() int { return len(w.ids) }
