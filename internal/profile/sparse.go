package profile

import "sort"

// SparseCounter counts diagnostic occurrences per event-class bin. The
// recentering step uses one to record events whose calibration bin existed
// but was statistically insufficient.
type SparseCounter struct {
	name   string
	counts map[string]int64
}

// NewSparseCounter creates an empty counter.
func NewSparseCounter(name string) *SparseCounter {
	return &SparseCounter{name: name, counts: make(map[string]int64)}
}

// Name returns the counter name.
func (c *SparseCounter) Name() string { return c.name }

// Inc increments the count for the given event-class bin.
func (c *SparseCounter) Inc(key string) {
	c.counts[key]++
}

// Count returns the count for one bin.
func (c *SparseCounter) Count(key string) int64 {
	return c.counts[key]
}

// Total returns the count summed over all bins.
func (c *SparseCounter) Total() int64 {
	var total int64
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Snapshot flattens the counter into persistable records.
func (c *SparseCounter) Snapshot() []BinRecord {
	keys := make([]string, 0, len(c.counts))
	for k := range c.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]BinRecord, 0, len(keys))
	for _, key := range keys {
		out = append(out, BinRecord{
			Kind:    KindCounter,
			BinKey:  key,
			Channel: -1,
			N:       c.counts[key],
		})
	}
	return out
}
