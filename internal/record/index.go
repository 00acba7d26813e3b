package record

import "sync"

// Index is a mapping from (channel, subdir) to its loaded PackageRecords,
// queryable by name across every loaded channel.
// Loading is idempotent: loading the same (channel, subdir) again replaces
// its prior contents rather than duplicating them.
type Index struct {
	mu       sync.RWMutex
	bySubdir map[subdirKey][]*PackageRecord
	byName   map[string][]*PackageRecord
	priority map[string]int
}

type subdirKey struct {
	channel string
	subdir  string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		bySubdir: make(map[subdirKey][]*PackageRecord),
		byName:   make(map[string][]*PackageRecord),
		priority: make(map[string]int),
	}
}

// SetChannelPriority fixes the priority used to order Query results
// (lower = higher priority).
func (idx *Index) SetChannelPriority(channel string, priority int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.priority[channel] = priority
}

// Load replaces the records for one (channel, subdir), rebuilding the
// by-name view. Load accepts any subdir name; skipping unknown subdirs is
// left to the caller.
func (idx *Index) Load(channel, subdir string, recs []*PackageRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := subdirKey{channel, subdir}
	if old, ok := idx.bySubdir[key]; ok {
		idx.removeLocked(old)
	}
	idx.bySubdir[key] = recs
	for _, r := range recs {
		idx.byName[r.Name] = append(idx.byName[r.Name], r)
	}
}

func (idx *Index) removeLocked(recs []*PackageRecord) {
	for _, r := range recs {
		list := idx.byName[r.Name]
		for i, x := range list {
			if x == r {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		idx.byName[r.Name] = list
	}
}

// Query returns every record for name across all loaded channels, sorted
// channel priority ascending, version descending, build_number descending,
// build string descending, timestamp descending. The returned slice is a
// fresh copy safe for the caller to sort or filter further.
func (idx *Index) Query(name string) []*PackageRecord {
	idx.mu.RLock()
	src := idx.byName[name]
	out := make([]*PackageRecord, len(src))
	copy(out, src)
	priority := make(map[string]int, len(idx.priority))
	for k, v := range idx.priority {
		priority[k] = v
	}
	idx.mu.RUnlock()

	ByQueryOrder(out, priority)
	return out
}

// Names returns every distinct package name currently indexed.
func (idx *Index) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.byName))
	for n := range idx.byName {
		out = append(out, n)
	}
	return out
}
