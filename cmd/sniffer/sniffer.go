package main

import (
	"bufio"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/dcrodman/blaze/internal/core/debug"
	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
)

// sniffer reassembles each direction of every captured connection separately.
type sniffer struct {
	Writer *bufio.Writer

	serverPorts map[uint16]bool
	streams     map[string]*packets.Stream
}

func newSniffer(w *bufio.Writer, serverPorts map[uint16]bool) *sniffer {
	return &sniffer{
		Writer:      w,
		serverPorts: serverPorts,
		streams:     make(map[string]*packets.Stream),
	}
}

func (s *sniffer) startReading(packetChan chan gopacket.Packet) {
	for packet := range packetChan {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp := tcpLayer.(*layers.TCP)
		flow := packet.NetworkLayer().NetworkFlow()
		key := fmt.Sprintf("%v:%d->%v:%d", flow.Src(), tcp.SrcPort, flow.Dst(), tcp.DstPort)

		if tcp.FIN || tcp.RST {
			delete(s.streams, key)
		}
		if len(tcp.Payload) == 0 {
			continue
		}
		s.handleSegment(key, uint16(tcp.SrcPort), uint16(tcp.DstPort), tcp.Payload)
	}
}

// handleSegment feeds one segment to its stream and prints whatever packets
// it completes.
func (s *sniffer) handleSegment(key string, srcPort, dstPort uint16, payload []byte) {
	clientPacket, port := s.endpoint(srcPort, dstPort)

	stream, ok := s.streams[key]
	if !ok {
		stream = packets.NewStream(0, tdf.DefaultLimits)
		s.streams[key] = stream
	}
	decoded, err := stream.Feed(payload)
	for _, p := range decoded {
		debug.PrintPacket(debug.PrintPacketParams{
			Writer:       s.Writer,
			Endpoint:     fmt.Sprintf("%d", port),
			ClientPacket: clientPacket,
			Packet:       p,
		})
	}
	if err != nil {
		fmt.Fprintf(s.Writer, "[%s] %v\n", key, err)
	}
	_ = s.Writer.Flush()
}

// endpoint reports whether the segment was sent by the client along with the
// server port it belongs to.
func (s *sniffer) endpoint(srcPort, dstPort uint16) (bool, uint16) {
	if s.serverPorts[dstPort] {
		return true, dstPort
	}
	return false, srcPort
}
