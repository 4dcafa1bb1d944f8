package qos

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dcrodman/blaze/internal/blaze/records"
)

type fakeTarget struct {
	id      uint32
	summary *Summary
}

func (f *fakeTarget) ID() uint32 { return f.id }
func (f *fakeTarget) SetQoS(s Summary) {
	f.summary = &s
}

func newTestProber() *Prober {
	p := NewProber(Config{
		Sites:           []Site{{Alias: "ams", Name: "Amsterdam"}, {Alias: "iad", Name: "Virginia"}},
		WindowSize:      4,
		MediumBandwidth: 100,
		HighBandwidth:   1000,
	})
	p.now = func() time.Time { return time.Unix(0, 0) }
	return p
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestRecordProbe(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    Summary
	}{
		{
			name:    "odd sample count uses the middle value",
			samples: []Sample{{RTT: ms(30)}, {RTT: ms(10)}, {RTT: ms(500)}},
			want:    Summary{SiteID: "ams", Latency: ms(30), NAT: NATUnknown, Bandwidth: BandwidthUnknown, Samples: 3},
		},
		{
			name:    "even sample count averages the middle values",
			samples: []Sample{{RTT: ms(10)}, {RTT: ms(20)}, {RTT: ms(40)}, {RTT: ms(1000)}},
			want:    Summary{SiteID: "ams", Latency: ms(30), NAT: NATUnknown, Bandwidth: BandwidthUnknown, Samples: 4},
		},
		{
			name: "preserved ports are open",
			samples: []Sample{
				{RTT: ms(10), InternalPort: 3659, ExternalPort: 3659, UpstreamBps: 2000},
				{RTT: ms(10), InternalPort: 3659, ExternalPort: 3659, UpstreamBps: 4000},
			},
			want: Summary{SiteID: "ams", Latency: ms(10), NAT: NATOpen, Bandwidth: BandwidthHigh, UpstreamBps: 3000, Samples: 2},
		},
		{
			name: "one remapped port is moderate",
			samples: []Sample{
				{RTT: ms(10), InternalPort: 3659, ExternalPort: 40000, UpstreamBps: 500},
				{RTT: ms(10), InternalPort: 3659, ExternalPort: 40000},
			},
			want: Summary{SiteID: "ams", Latency: ms(10), NAT: NATModerate, Bandwidth: BandwidthMedium, UpstreamBps: 500, Samples: 2},
		},
		{
			name: "changing ports are strict",
			samples: []Sample{
				{RTT: ms(10), InternalPort: 3659, ExternalPort: 40000, UpstreamBps: 50},
				{RTT: ms(10), InternalPort: 3659, ExternalPort: 40001},
			},
			want: Summary{SiteID: "ams", Latency: ms(10), NAT: NATStrict, Bandwidth: BandwidthLow, UpstreamBps: 50, Samples: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProber()
			target := &fakeTarget{id: 1}

			got, err := p.RecordProbe(target, "ams", tt.samples)
			if err != nil {
				t.Fatalf("RecordProbe() returned an unexpected error: %v", err)
			}
			tt.want.MeasuredAt = time.Unix(0, 0)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("RecordProbe() summary did not match expected; diff:\n%s", diff)
			}
			if target.summary == nil || target.summary.Latency != got.Latency {
				t.Fatalf("RecordProbe() did not update the target")
			}
		})
	}
}

func TestRecordProbe_InsufficientData(t *testing.T) {
	p := newTestProber()
	target := &fakeTarget{id: 1}

	prior, err := p.RecordProbe(target, "ams", []Sample{{RTT: ms(25)}})
	if err != nil {
		t.Fatalf("RecordProbe() returned an unexpected error: %v", err)
	}

	for name, samples := range map[string][]Sample{
		"empty":        nil,
		"zero rtt":     {{RTT: ms(10)}, {RTT: 0}},
		"negative rtt": {{RTT: -ms(10)}},
	} {
		if _, err := p.RecordProbe(target, "ams", samples); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("%s: RecordProbe() want = %v, got = %v", name, ErrInsufficientData, err)
		}
	}
	if target.summary.Latency != prior.Latency || target.summary.Samples != 1 {
		t.Fatalf("failed probes overwrote the prior summary: %v", target.summary)
	}

	if _, err := p.RecordProbe(target, "nowhere", []Sample{{RTT: ms(1)}}); !errors.Is(err, ErrUnknownSite) {
		t.Fatalf("RecordProbe() want = %v, got = %v", ErrUnknownSite, err)
	}
}

func TestRecordProbe_Window(t *testing.T) {
	p := newTestProber()
	target := &fakeTarget{id: 1}
	other := &fakeTarget{id: 2}

	if _, err := p.RecordProbe(target, "ams", []Sample{{RTT: ms(100)}, {RTT: ms(100)}, {RTT: ms(100)}}); err != nil {
		t.Fatalf("RecordProbe() returned an unexpected error: %v", err)
	}
	got, _ := p.RecordProbe(target, "ams", []Sample{{RTT: ms(10)}, {RTT: ms(10)}, {RTT: ms(10)}})
	// The window keeps the last four samples: 100, 10, 10, 10.
	if got.Samples != 4 || got.Latency != ms(10) {
		t.Fatalf("RecordProbe() window want = 4 samples at 10ms, got = %v (%d samples)", got.Latency, got.Samples)
	}

	got, _ = p.RecordProbe(other, "ams", []Sample{{RTT: ms(70)}})
	if got.Samples != 1 || got.Latency != ms(70) {
		t.Fatalf("sessions must not share a window, got = %v", got)
	}
	got, _ = p.RecordProbe(target, "iad", []Sample{{RTT: ms(70)}})
	if got.Samples != 1 {
		t.Fatalf("sites must not share a window, got = %v", got)
	}

	p.Forget(target.id)
	got, _ = p.RecordProbe(target, "ams", []Sample{{RTT: ms(5)}})
	if got.Samples != 1 {
		t.Fatalf("Forget() did not drop the window, got %d samples", got.Samples)
	}
}

func TestConfigInfo(t *testing.T) {
	p := NewProber(Config{
		Sites: []Site{
			{Alias: "ams", Name: "Amsterdam", Address: "qos-ams.example.com", Port: 17502},
			{Alias: "iad", Name: "Virginia", Address: "qos-iad.example.com", Port: 17503},
		},
		LatencyProbes: 10,
		ServiceID:     1161889797,
	})

	want := records.QosConfigInfo{
		BandwidthPingSite: records.QosPingSiteInfo{Address: "qos-ams.example.com", Port: 17502, Name: "Amsterdam"},
		LatencyProbes:     10,
		LatencyPingSites: map[string]records.QosPingSiteInfo{
			"ams": {Address: "qos-ams.example.com", Port: 17502, Name: "Amsterdam"},
			"iad": {Address: "qos-iad.example.com", Port: 17503, Name: "Virginia"},
		},
		ServiceID: 1161889797,
	}
	if diff := cmp.Diff(want, p.ConfigInfo()); diff != "" {
		t.Errorf("ConfigInfo() mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	p := newTestProber()
	tests := []struct {
		name    string
		site    string
		samples []Sample
		want    error
	}{
		{name: "valid", site: "ams", samples: []Sample{{RTT: ms(10)}}},
		{name: "unknown site", site: "syd", samples: []Sample{{RTT: ms(10)}}, want: ErrUnknownSite},
		{name: "no samples", site: "ams", want: ErrInsufficientData},
		{name: "non-positive round trip", site: "iad", samples: []Sample{{RTT: ms(10)}, {RTT: 0}}, want: ErrInsufficientData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Validate(tt.site, tt.samples); !errors.Is(err, tt.want) {
				t.Errorf("Validate() want = %v, got = %v", tt.want, err)
			}
		})
	}
	if got := p.window.ItemCount(); got != 0 {
		t.Errorf("Validate() retained %d windows", got)
	}
}
