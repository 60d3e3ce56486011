package importer

import "sync"

// Progress is the point-in-time state of one running batch, read by a
// polling client while the import goroutines write it.
type Progress struct {
	Total           int    `json:"total"`
	Processed       int    `json:"processed"`
	Imported        int    `json:"imported"`
	Failed          int    `json:"failed"`
	CurrentFileName string `json:"currentFileName,omitempty"`
	Status          string `json:"status"`
}

// Registry is a job registry mapping batch IDs to progress snapshots.
// Writers overwrite whole entries; readers always observe a complete
// snapshot.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]Progress
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]Progress)}
}

// Put stores the progress snapshot for a batch.
func (r *Registry) Put(batchID int64, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[batchID] = p
}

// Get returns the snapshot for a batch and whether it exists.
func (r *Registry) Get(batchID int64) (Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[batchID]
	return p, ok
}

// Delete removes a batch's entry.
func (r *Registry) Delete(batchID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, batchID)
}
