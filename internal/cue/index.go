// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cue

import "sort"

// channel holds the cues of one kind ordered by Start, with a running
// maximum of End so lookups can skip every prefix that ends before t.
type channel struct {
	cues   []Cue
	maxEnd []float64
}

func newChannel(cues []Cue) channel {
	ch := channel{cues: cues, maxEnd: make([]float64, len(cues))}
	for i, c := range cues {
		ch.maxEnd[i] = c.End
		if i > 0 && ch.maxEnd[i-1] > c.End {
			ch.maxEnd[i] = ch.maxEnd[i-1]
		}
	}
	return ch
}

// containing returns cues whose [Start, End] contains t, in Start order.
// limit <= 0 means no limit.
func (ch channel) containing(t float64, limit int) []Cue {
	n := len(ch.cues)
	hi := sort.Search(n, func(i int) bool { return ch.cues[i].Start > t })
	lo := sort.Search(hi, func(i int) bool { return ch.maxEnd[i] >= t })

	var out []Cue
	for i := lo; i < hi; i++ {
		if ch.cues[i].End >= t {
			out = append(out, ch.cues[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// Index answers active-cue queries over an immutable Track.
type Index struct {
	all      Track
	channels map[Kind]channel
}

// NewIndex builds an index. The track is copied and stable-sorted by Start,
// so hand-built tracks in any order are accepted.
func NewIndex(t Track) *Index {
	all := make(Track, len(t))
	copy(all, t)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	idx := &Index{all: all, channels: make(map[Kind]channel, 2)}
	for _, k := range []Kind{Caption, VisualDescription} {
		idx.channels[k] = newChannel(all.Filter(k))
	}
	return idx
}

// ActiveCue returns the first cue of kind (by Start) whose range contains t.
func (x *Index) ActiveCue(t float64, kind Kind) (Cue, bool) {
	if x == nil {
		return Cue{}, false
	}
	got := x.channels[kind].containing(t, 1)
	if len(got) == 0 {
		return Cue{}, false
	}
	return got[0], true
}

// ActiveCues returns every cue of kind whose range contains t, in Start order.
func (x *Index) ActiveCues(t float64, kind Kind) []Cue {
	if x == nil {
		return nil
	}
	return x.channels[kind].containing(t, 0)
}

// AllCues returns the ordered cues of one kind.
func (x *Index) AllCues(kind Kind) []Cue {
	if x == nil {
		return nil
	}
	src := x.channels[kind].cues
	out := make([]Cue, len(src))
	copy(out, src)
	return out
}

// All returns every cue in Start order.
func (x *Index) All() Track {
	if x == nil {
		return nil
	}
	out := make(Track, len(x.all))
	copy(out, x.all)
	return out
}

// Len returns the number of indexed cues.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.all)
}

// IndexOf returns the position of the cue in All(), or -1.
func (x *Index) IndexOf(c Cue) int {
	if x == nil {
		return -1
	}
	for i, o := range x.all {
		if o == c {
			return i
		}
	}
	return -1
}
