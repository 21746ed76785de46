package profile

import (
	"fmt"
	"sort"
)

// Channelized is the per-channel multiplicity profile a gain-equalization
// step keeps: for every event-class bin and every used channel it
// accumulates the distribution of the channel's raw weight, and in
// parallel the same distribution per channel group.
type Channelized struct {
	name      string
	nChannels int
	used      []bool
	groups    []int // channel -> group id; nil when the detector has no groups
	bins      map[string]*channelBin
}

type channelBin struct {
	ch  []binStats
	grp map[int]*binStats
}

// NewChannelized creates a channel profile. used marks the channels that
// participate; groups maps each channel to its group id and may be nil.
func NewChannelized(name string, nChannels int, used []bool, groups []int) (*Channelized, error) {
	if nChannels < 1 {
		return nil, fmt.Errorf("profile: channel profile %q needs at least one channel", name)
	}
	if used != nil && len(used) != nChannels {
		return nil, fmt.Errorf("profile: used-channel mask has %d entries for %d channels", len(used), nChannels)
	}
	if groups != nil && len(groups) != nChannels {
		return nil, fmt.Errorf("profile: group table has %d entries for %d channels", len(groups), nChannels)
	}
	if used == nil {
		used = make([]bool, nChannels)
		for i := range used {
			used[i] = true
		}
	}
	return &Channelized{
		name:      name,
		nChannels: nChannels,
		used:      used,
		groups:    groups,
		bins:      make(map[string]*channelBin),
	}, nil
}

// Name returns the profile name.
func (p *Channelized) Name() string { return p.name }

// Channels returns the number of channels the profile covers.
func (p *Channelized) Channels() int { return p.nChannels }

// HasGroups reports whether a channel-group table was configured.
func (p *Channelized) HasGroups() bool { return p.groups != nil }

func (p *Channelized) bin(key string) *channelBin {
	b, ok := p.bins[key]
	if !ok {
		b = &channelBin{ch: make([]binStats, p.nChannels), grp: make(map[int]*binStats)}
		p.bins[key] = b
	}
	return b
}

// Fill accumulates one raw channel weight. Fills for unused or out-of-range
// channels are dropped; the used-channel mask is the source of truth for
// which channels exist.
func (p *Channelized) Fill(key string, channel int, weight float64) {
	if channel < 0 || channel >= p.nChannels || !p.used[channel] {
		return
	}
	b := p.bin(key)
	b.ch[channel].add(weight)
	if p.groups != nil {
		g := p.groups[channel]
		gs, ok := b.grp[g]
		if !ok {
			gs = &binStats{}
			b.grp[g] = gs
		}
		gs.add(weight)
	}
}

// BinContent returns the channel's mean accumulated weight for the bin.
func (p *Channelized) BinContent(key string, channel int) float64 {
	b, ok := p.bins[key]
	if !ok || channel < 0 || channel >= p.nChannels {
		return 0
	}
	return b.ch[channel].mean()
}

// BinError returns the standard deviation of the channel's accumulated
// weight, interpreted as the multiplicity dispersion.
func (p *Channelized) BinError(key string, channel int) float64 {
	b, ok := p.bins[key]
	if !ok || channel < 0 || channel >= p.nChannels {
		return 0
	}
	return b.ch[channel].stdDev()
}

// Entries returns the channel's entry count for the bin.
func (p *Channelized) Entries(key string, channel int) int64 {
	b, ok := p.bins[key]
	if !ok || channel < 0 || channel >= p.nChannels {
		return 0
	}
	return b.ch[channel].n
}

// GroupWeight returns the mean accumulated weight of the channel's group
// for the bin, or 1 when no group table is configured or the group was
// never filled.
func (p *Channelized) GroupWeight(key string, channel int) float64 {
	if p.groups == nil || channel < 0 || channel >= p.nChannels {
		return 1
	}
	b, ok := p.bins[key]
	if !ok {
		return 1
	}
	gs, ok := b.grp[p.groups[channel]]
	if !ok || gs.n == 0 {
		return 1
	}
	return gs.mean()
}

// Snapshot flattens the profile into persistable bin records.
func (p *Channelized) Snapshot() []BinRecord {
	keys := make([]string, 0, len(p.bins))
	for k := range p.bins {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []BinRecord
	for _, key := range keys {
		b := p.bins[key]
		for ch := 0; ch < p.nChannels; ch++ {
			s := b.ch[ch]
			if s.n == 0 {
				continue
			}
			out = append(out, BinRecord{
				Kind:    KindChannel,
				BinKey:  key,
				Channel: ch,
				N:       s.n,
				Sum:     s.sum,
				SumSq:   s.sumSq,
			})
		}
		groupIDs := make([]int, 0, len(b.grp))
		for g := range b.grp {
			groupIDs = append(groupIDs, g)
		}
		sort.Ints(groupIDs)
		for _, g := range groupIDs {
			s := b.grp[g]
			out = append(out, BinRecord{
				Kind:    KindGroup,
				BinKey:  key,
				Channel: g,
				N:       s.n,
				Sum:     s.sum,
				SumSq:   s.sumSq,
			})
		}
	}
	return out
}

// ChannelizedFromRecords rebuilds a channel profile from snapshot records.
func ChannelizedFromRecords(name string, nChannels int, used []bool, groups []int, records []BinRecord) (*Channelized, error) {
	p, err := NewChannelized(name, nChannels, used, groups)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		switch r.Kind {
		case KindChannel:
			if r.Channel < 0 || r.Channel >= nChannels {
				return nil, fmt.Errorf("profile: record for channel %d outside 0..%d", r.Channel, nChannels-1)
			}
			p.bin(r.BinKey).ch[r.Channel].merge(binStats{n: r.N, sum: r.Sum, sumSq: r.SumSq})
		case KindGroup:
			b := p.bin(r.BinKey)
			gs, ok := b.grp[r.Channel]
			if !ok {
				gs = &binStats{}
				b.grp[r.Channel] = gs
			}
			gs.merge(binStats{n: r.N, sum: r.Sum, sumSq: r.SumSq})
		}
	}
	return p, nil
}

// Merge folds another channel profile into this one. Channel counts must
// match.
func (p *Channelized) Merge(other *Channelized) error {
	if p.nChannels != other.nChannels {
		return structureMismatch("channel profiles",
			fmt.Sprintf("%d channels", p.nChannels), fmt.Sprintf("%d channels", other.nChannels))
	}
	for key, ob := range other.bins {
		b := p.bin(key)
		for ch := 0; ch < p.nChannels; ch++ {
			b.ch[ch].merge(ob.ch[ch])
		}
		for g, gs := range ob.grp {
			dst, ok := b.grp[g]
			if !ok {
				dst = &binStats{}
				b.grp[g] = dst
			}
			dst.merge(*gs)
		}
	}
	return nil
}
