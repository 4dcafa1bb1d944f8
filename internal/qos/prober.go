package qos

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dcrodman/blaze/internal/blaze/records"
)

type Config struct {
	Sites         []Site
	LatencyProbes int
	ServiceID     uint32
	// Samples retained per session and site.
	WindowSize int
	// How long retained samples survive without new probes.
	SampleTTL time.Duration
	// Upstream bytes per second thresholds.
	MediumBandwidth uint32
	HighBandwidth   uint32
}

// Prober keeps a rolling window of samples per session and site and
// summarizes it each time new samples are recorded.
type Prober struct {
	cfg    Config
	sites  map[string]Site
	window *gocache.Cache
	now    func() time.Time
}

func NewProber(cfg Config) *Prober {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 16
	}
	if cfg.SampleTTL <= 0 {
		cfg.SampleTTL = 10 * time.Minute
	}
	sites := make(map[string]Site, len(cfg.Sites))
	for _, s := range cfg.Sites {
		sites[s.Alias] = s
	}
	return &Prober{
		cfg:    cfg,
		sites:  sites,
		window: gocache.New(cfg.SampleTTL, cfg.SampleTTL),
		now:    time.Now,
	}
}

func (p *Prober) Sites() []Site      { return append([]Site(nil), p.cfg.Sites...) }
func (p *Prober) LatencyProbes() int { return p.cfg.LatencyProbes }
func (p *Prober) ServiceID() uint32  { return p.cfg.ServiceID }

func (p *Prober) Site(alias string) (Site, bool) {
	s, ok := p.sites[alias]
	return s, ok
}

// ConfigInfo describes the configured ping sites to a client. The first
// site doubles as the bandwidth test site.
func (p *Prober) ConfigInfo() records.QosConfigInfo {
	info := records.QosConfigInfo{
		LatencyProbes:    uint16(p.cfg.LatencyProbes),
		LatencyPingSites: make(map[string]records.QosPingSiteInfo, len(p.cfg.Sites)),
		ServiceID:        p.cfg.ServiceID,
	}
	for i, s := range p.cfg.Sites {
		site := records.QosPingSiteInfo{Address: s.Address, Port: s.Port, Name: s.Name}
		if i == 0 {
			info.BandwidthPingSite = site
		}
		info.LatencyPingSites[s.Alias] = site
	}
	return info
}

func windowKey(sessionID uint32, siteID string) string {
	return fmt.Sprintf("%d/%s", sessionID, siteID)
}

// Validate reports whether RecordProbe would accept samples for siteID.
func (p *Prober) Validate(siteID string, samples []Sample) error {
	if _, ok := p.sites[siteID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSite, siteID)
	}
	if len(samples) == 0 {
		return fmt.Errorf("%w: no samples for site %s", ErrInsufficientData, siteID)
	}
	for i, s := range samples {
		if s.RTT <= 0 {
			return fmt.Errorf("%w: sample %d has round trip %s", ErrInsufficientData, i, s.RTT)
		}
	}
	return nil
}

// RecordProbe adds samples to the window for (target, siteID) and pushes the
// resulting summary to target. On error nothing is retained or pushed.
func (p *Prober) RecordProbe(target Target, siteID string, samples []Sample) (Summary, error) {
	if err := p.Validate(siteID, samples); err != nil {
		return Summary{}, err
	}

	key := windowKey(target.ID(), siteID)
	var window []Sample
	if v, ok := p.window.Get(key); ok {
		window = v.([]Sample)
	}
	window = append(append([]Sample(nil), window...), samples...)
	if len(window) > p.cfg.WindowSize {
		window = window[len(window)-p.cfg.WindowSize:]
	}
	p.window.SetDefault(key, window)

	summary := p.summarize(siteID, window)
	target.SetQoS(summary)
	return summary, nil
}

// Forget drops every retained window for a session.
func (p *Prober) Forget(sessionID uint32) {
	prefix := fmt.Sprintf("%d/", sessionID)
	for key := range p.window.Items() {
		if strings.HasPrefix(key, prefix) {
			p.window.Delete(key)
		}
	}
}

func (p *Prober) summarize(siteID string, window []Sample) Summary {
	rtts := make([]time.Duration, len(window))
	var ups, downs []uint32
	for i, s := range window {
		rtts[i] = s.RTT
		if s.UpstreamBps > 0 {
			ups = append(ups, s.UpstreamBps)
		}
		if s.DownstreamBps > 0 {
			downs = append(downs, s.DownstreamBps)
		}
	}

	summary := Summary{
		SiteID:        siteID,
		Latency:       medianDuration(rtts),
		NAT:           classifyNAT(window),
		UpstreamBps:   medianUint32(ups),
		DownstreamBps: medianUint32(downs),
		Samples:       len(window),
		MeasuredAt:    p.now(),
	}
	summary.Bandwidth = p.classifyBandwidth(summary.UpstreamBps, len(ups) > 0)
	return summary
}

func (p *Prober) classifyBandwidth(upstream uint32, reported bool) BandwidthClass {
	switch {
	case !reported:
		return BandwidthUnknown
	case upstream >= p.cfg.HighBandwidth:
		return BandwidthHigh
	case upstream >= p.cfg.MediumBandwidth:
		return BandwidthMedium
	}
	return BandwidthLow
}

// classifyNAT looks at the port mappings observed across the window. A
// preserved port is open, a single remapped port is moderate and a port that
// changes between probes is strict.
func classifyNAT(window []Sample) NATType {
	external := map[uint16]struct{}{}
	preserved := true
	for _, s := range window {
		if s.ExternalPort == 0 {
			continue
		}
		external[s.ExternalPort] = struct{}{}
		if s.ExternalPort != s.InternalPort {
			preserved = false
		}
	}
	switch {
	case len(external) == 0:
		return NATUnknown
	case preserved:
		return NATOpen
	case len(external) == 1:
		return NATModerate
	}
	return NATStrict
}

func medianDuration(v []time.Duration) time.Duration {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), v...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func medianUint32(v []uint32) uint32 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), v...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return uint32((uint64(sorted[mid-1]) + uint64(sorted[mid])) / 2)
	}
	return sorted[mid]
}
