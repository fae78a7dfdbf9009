package v1

import "time"

// Artifact is a stored unit of generated content.
type Artifact struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	TaskID    string    `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the store.
type Stats struct {
	CoreItems    int    `json:"core_items"`
	ArchiveItems int    `json:"archive_items"`
	CacheSize    int    `json:"cache_size"`
	CacheHits    uint64 `json:"cache_hits"`
	CacheMisses  uint64 `json:"cache_misses"`
	TotalSize    int64  `json:"total_size"`
}
