// Package qos turns the latency, port and bandwidth samples a client reports
// for each ping site into a network quality summary.
package qos

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientData is returned when a probe carries no usable samples.
	// The session's previous summary must be kept.
	ErrInsufficientData = errors.New("insufficient qos data")
	ErrUnknownSite      = errors.New("unknown ping site")
)

// NATType classifies how the client's NAT maps ports.
type NATType uint8

const (
	NATOpen NATType = iota
	NATModerate
	NATStrict
	NATUnknown
)

func (n NATType) String() string {
	switch n {
	case NATOpen:
		return "open"
	case NATModerate:
		return "moderate"
	case NATStrict:
		return "strict"
	}
	return "unknown"
}

type BandwidthClass uint8

const (
	BandwidthUnknown BandwidthClass = iota
	BandwidthLow
	BandwidthMedium
	BandwidthHigh
)

func (b BandwidthClass) String() string {
	switch b {
	case BandwidthLow:
		return "low"
	case BandwidthMedium:
		return "medium"
	case BandwidthHigh:
		return "high"
	}
	return "unknown"
}

// Sample is one probe result. Zero ports or bandwidths mean "not reported".
type Sample struct {
	RTT           time.Duration
	InternalPort  uint16
	ExternalPort  uint16
	UpstreamBps   uint32
	DownstreamBps uint32
}

// Summary is the measured quality of a client's connection to one ping site.
type Summary struct {
	SiteID        string
	Latency       time.Duration
	NAT           NATType
	Bandwidth     BandwidthClass
	UpstreamBps   uint32
	DownstreamBps uint32
	Samples       int
	MeasuredAt    time.Time
}

func (s Summary) String() string {
	return fmt.Sprintf("site=%s latency=%s nat=%s bandwidth=%s", s.SiteID, s.Latency, s.NAT, s.Bandwidth)
}

// Target receives the summary of a successful probe.
type Target interface {
	ID() uint32
	SetQoS(Summary)
}

// Site is a ping site advertised to clients.
type Site struct {
	Alias   string
	Name    string
	Address string
	Port    uint16
}
