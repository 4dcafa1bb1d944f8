// The sniffer prints the Blaze packets exchanged on the local machine, for
// comparing the server against captures of other implementations.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

var (
	device = flag.String("d", "en0", "Device on which to listen for packets")
	ports  = flag.String("p", "42127,10041", "Comma separated server ports to decode")
)

func main() {
	flag.Parse()

	if getDeviceIP() == "" {
		exit("invalid device: %s", *device)
	}
	serverPorts, err := parsePorts(*ports)
	if err != nil {
		exit("invalid ports: %v", err)
	}

	handle, err := pcap.OpenLive(*device, math.MaxInt32, false, pcap.BlockForever)
	if err != nil {
		exit("error opening handle: %v", err)
	}
	if err := handle.SetBPFFilter(bpfFilter(serverPorts)); err != nil {
		exit("error setting filter: %v", err)
	}

	s := newSniffer(bufio.NewWriter(os.Stdout), serverPorts)
	s.startReading(gopacket.NewPacketSource(handle, handle.LinkType()).Packets())
}

func parsePorts(list string) (map[uint16]bool, error) {
	out := make(map[uint16]bool)
	for _, field := range strings.Split(list, ",") {
		port, err := strconv.ParseUint(strings.TrimSpace(field), 10, 16)
		if err != nil {
			return nil, err
		}
		out[uint16(port)] = true
	}
	return out, nil
}

func bpfFilter(ports map[uint16]bool) string {
	var clauses []string
	for port := range ports {
		clauses = append(clauses, fmt.Sprintf("port %d", port))
	}
	return "tcp and (" + strings.Join(clauses, " or ") + ")"
}

func exit(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func getDeviceIP() string {
	devs, _ := pcap.FindAllDevs()
	for _, dev := range devs {
		if dev.Name == *device {
			for _, address := range dev.Addresses {
				return address.IP.String()
			}
		}
	}
	return ""
}
