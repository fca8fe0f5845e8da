// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package speech

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/cuesync/internal/log"
	"github.com/ManuGH/cuesync/internal/metrics"
)

const (
	// DefaultWordsPerMinute approximates a default browser voice.
	DefaultWordsPerMinute = 160
	minUtterance          = 500 * time.Millisecond
)

// Paced is a silent synthesizer that completes each utterance after the time
// a voice would need to read it. It serves headless deployments.
type Paced struct {
	wpm       int
	afterFunc AfterFunc
	logger    zerolog.Logger

	mu      sync.Mutex
	pending map[uint64]Timer
	nextID  uint64
}

// NewPaced returns a Paced synthesizer. wpm <= 0 selects DefaultWordsPerMinute;
// a nil afterFunc selects RealAfterFunc.
func NewPaced(wpm int, afterFunc AfterFunc) *Paced {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	if afterFunc == nil {
		afterFunc = RealAfterFunc
	}
	return &Paced{
		wpm:       wpm,
		afterFunc: afterFunc,
		logger:    log.WithComponent("speech"),
		pending:   make(map[uint64]Timer),
	}
}

// Duration is the time Paced takes to speak text.
func (p *Paced) Duration(text string) time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(float64(words) / float64(p.wpm) * float64(time.Minute))
	if d < minUtterance {
		d = minUtterance
	}
	return d
}

func (p *Paced) Speak(text string, onEnd func(error)) error {
	d := p.Duration(text)

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.pending[id] = p.afterFunc(d, func() {
		p.mu.Lock()
		_, live := p.pending[id]
		delete(p.pending, id)
		p.mu.Unlock()
		if !live {
			return
		}
		metrics.IncSpeechUtterance("paced", "completed")
		if onEnd != nil {
			onEnd(nil)
		}
	})
	p.mu.Unlock()

	p.logger.Debug().
		Str(log.FieldEvent, "speech.utterance_started").
		Dur("estimate", d).
		Int("words", len(strings.Fields(text))).
		Msg("paced utterance")
	return nil
}

func (p *Paced) CancelAll() {
	p.mu.Lock()
	pending := p.pending
	p.pending = make(map[uint64]Timer)
	p.mu.Unlock()

	for range pending {
		metrics.IncSpeechUtterance("paced", "cancelled")
	}
	for _, t := range pending {
		t.Stop()
	}
}
