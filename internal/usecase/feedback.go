package usecase

import (
	"sync"
	"time"

	"supportchat/internal/domain"
)

const (
	DefaultFeedbackDelay = 3 * time.Minute
	feedbackScale        = 5
	feedbackPrompt       = "상담이 도움이 되셨나요? 만족도를 남겨 주세요."
)

// timerStopper is the part of *time.Timer the prompter needs.
type timerStopper interface {
	Stop() bool
}

// afterFunc schedules f after d, like time.AfterFunc.
type afterFunc func(d time.Duration, f func()) timerStopper

func realAfterFunc(d time.Duration, f func()) timerStopper {
	return time.AfterFunc(d, f)
}

// FeedbackPrompter is a single-shot idle timer. Touch re-arms it while it has
// not fired; once fired it never fires again.
type FeedbackPrompter struct {
	delay  time.Duration
	after  afterFunc
	onFire func()

	mu      sync.Mutex
	timer   timerStopper
	gen     uint64
	started bool
	fired   bool
}

func NewFeedbackPrompter(delay time.Duration, onFire func()) *FeedbackPrompter {
	if delay <= 0 {
		delay = DefaultFeedbackDelay
	}
	return &FeedbackPrompter{delay: delay, after: realAfterFunc, onFire: onFire}
}

// Start arms the timer the first time it is called.
func (p *FeedbackPrompter) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.fired {
		return
	}
	p.started = true
	p.armLocked()
}

// Touch restarts the countdown.
func (p *FeedbackPrompter) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started || p.fired {
		return
	}
	p.armLocked()
}

// Stop cancels a pending countdown.
func (p *FeedbackPrompter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Fired reports whether the prompt was already proposed.
func (p *FeedbackPrompter) Fired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fired
}

func (p *FeedbackPrompter) armLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.gen++
	gen := p.gen
	p.timer = p.after(p.delay, func() { p.fire(gen) })
}

func (p *FeedbackPrompter) fire(gen uint64) {
	p.mu.Lock()
	if !p.started || p.fired || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.fired = true
	p.timer = nil
	p.mu.Unlock()

	if p.onFire != nil {
		p.onFire()
	}
}

func feedbackEntry() domain.Entry {
	return domain.Entry{
		Key:      newEntryKey(domain.EntryFeedbackBlock),
		Kind:     domain.EntryFeedbackBlock,
		Text:     feedbackPrompt,
		Feedback: &domain.FeedbackPayload{Scale: feedbackScale},
	}
}
