package main

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// channelHit is one generated signal on a segmented detector.
type channelHit struct {
	Channel int
	Phi     float64
	Weight  float64
}

// toyEvent is one generated collision event.
type toyEvent struct {
	Centrality float64
	TrackPhis  []float64
	Hits       []channelHit
}

// generator produces toy events with a known elliptic flow signal and
// deliberately mis-calibrated channel gains, so the corrections have
// something real to remove: a shifted event plane biases the raw flow
// vectors and the gain spread biases the channel weights.
type generator struct {
	rng      *rand.Rand
	mult     distuv.Poisson
	channels int
	gains    []float64

	// v2 is the elliptic flow coefficient; planePhi the fixed event-plane
	// offset that recentering must remove.
	v2       float64
	planePhi float64
}

func newGenerator(seed uint64, channels int, meanTracks float64) *generator {
	src := rand.NewPCG(seed, seed)
	rng := rand.New(src)

	gains := make([]float64, channels)
	for i := range gains {
		// Channel gains spread around unity, stable across events.
		gains[i] = 0.5 + 1.5*rng.Float64()
	}

	return &generator{
		rng:      rng,
		mult:     distuv.Poisson{Lambda: meanTracks, Src: src},
		channels: channels,
		gains:    gains,
		v2:       0.08,
		planePhi: math.Pi / 7,
	}
}

// event generates one toy event.
func (g *generator) event() toyEvent {
	ev := toyEvent{Centrality: 100 * g.rng.Float64()}

	n := int(g.mult.Rand())
	ev.TrackPhis = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		ev.TrackPhis = append(ev.TrackPhis, g.samplePhi())
	}

	ev.Hits = make([]channelHit, 0, g.channels)
	for ch := 0; ch < g.channels; ch++ {
		phi := 2 * math.Pi * (float64(ch) + 0.5) / float64(g.channels)
		// Amplitude modulated by the flow signal at the channel position,
		// scaled by the channel's gain.
		amp := g.gains[ch] * (1 + 2*g.v2*math.Cos(2*(phi-g.planePhi)))
		amp *= 0.8 + 0.4*g.rng.Float64()
		ev.Hits = append(ev.Hits, channelHit{Channel: ch, Phi: phi, Weight: amp})
	}

	return ev
}

// samplePhi draws an azimuthal angle from 1 + 2 v2 cos(2(phi - planePhi))
// by rejection sampling.
func (g *generator) samplePhi() float64 {
	max := 1 + 2*g.v2
	for {
		phi := 2 * math.Pi * g.rng.Float64()
		f := 1 + 2*g.v2*math.Cos(2*(phi-g.planePhi))
		if max*g.rng.Float64() < f {
			return phi
		}
	}
}
