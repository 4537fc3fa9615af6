package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

// HarvestIndex keeps harvest records in memory.
type HarvestIndex struct {
	mu      sync.RWMutex
	records []crawler.HarvestRecord
}

var _ crawler.HarvestIndex = (*HarvestIndex)(nil)

// NewHarvestIndex constructs a HarvestIndex.
func NewHarvestIndex() *HarvestIndex {
	return &HarvestIndex{}
}

// RecordHarvest appends records.
func (h *HarvestIndex) RecordHarvest(_ context.Context, records []crawler.HarvestRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, records...)
	return nil
}

// Records returns a copy of everything recorded so far.
func (h *HarvestIndex) Records() []crawler.HarvestRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]crawler.HarvestRecord(nil), h.records...)
}
