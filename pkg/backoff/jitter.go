package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// JitterStrategy selects how randomization is applied to a computed base delay.
type JitterStrategy string

const (
	// JitterNone returns the base delay unchanged.
	JitterNone JitterStrategy = "none"
	// JitterFull returns a uniform value in [0, d].
	JitterFull JitterStrategy = "full"
	// JitterEqual returns floor(d/2) + uniform(0, floor(d/2)).
	JitterEqual JitterStrategy = "equal"
	// JitterDecorrelated returns min(maxDelay, uniform(initialDelay, prevDelay*3)).
	JitterDecorrelated JitterStrategy = "decorrelated"
)

// Source is a goroutine-safe random source used to compute jitter. The
// randomness need not be cryptographic (spec requirement); a *Source may be
// shared by multiple concurrent retry loops.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a jitter source seeded from the current time.
func NewSource() *Source {
	return &Source{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Int63n returns a pseudo-random non-negative int64 < n, or 0 if n <= 0.
func (s *Source) Int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Int63n(n)
}

// Float64 returns a pseudo-random float64 in [0.0, 1.0).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// defaultSource is used by ApplyJitter when the caller passes a nil Source,
// so stateless call sites (and tests) don't need to thread one through.
var defaultSource = NewSource()

// ApplyJitter randomizes a computed base delay d according to strategy.
// prevDelay is the previously *jittered* delay, used only by the
// decorrelated strategy; callers should seed it with cfg.InitialDelayMS for
// the first attempt. An unrecognized strategy falls back to JitterFull.
//
// src may be nil, in which case a shared package-level source is used.
func ApplyJitter(d int64, strategy JitterStrategy, prevDelay int64, cfg Config, src *Source) int64 {
	if src == nil {
		src = defaultSource
	}

	switch strategy {
	case JitterNone:
		return d
	case JitterEqual:
		half := d / 2
		return half + src.Int63n(half+1)
	case JitterDecorrelated:
		lo := cfg.InitialDelayMS
		hi := prevDelay * 3
		if hi <= lo {
			return clampDelay(lo, cfg.MaxDelayMS)
		}
		span := hi - lo
		v := lo + int64(src.Float64()*float64(span))
		return clampDelay(v, cfg.MaxDelayMS)
	case JitterFull:
		return src.Int63n(d + 1)
	default:
		// Unknown strategies fall back to full jitter.
		return src.Int63n(d + 1)
	}
}

func clampDelay(d, max int64) int64 {
	if d > max {
		return max
	}
	if d < 0 {
		return 0
	}
	return d
}
