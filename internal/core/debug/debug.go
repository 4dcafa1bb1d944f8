// Package debug contains the utilities enabled in debug mode: the pprof
// server and human readable packet dumps.
package debug

import (
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/blaze/internal/core/tdf"
	"github.com/dcrodman/blaze/internal/packets"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// StartUtilities spins off the services associated with debug mode.
func StartUtilities(logger logrus.FieldLogger, pprofPort int) {
	startPprofServer(logger, pprofPort)
}

// This function starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the server. See https://golang.org/pkg/net/http/pprof/
func startPprofServer(logger logrus.FieldLogger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

type PrintPacketParams struct {
	Writer io.Writer
	// Endpoint that accepted the connection, e.g. "BLAZE".
	Endpoint     string
	ClientPacket bool
	Packet       *packets.Packet
}

// PrintPacket writes a header summary followed by the decoded body as JSON.
func PrintPacket(params PrintPacketParams) {
	direction := "server -> client"
	if params.ClientPacket {
		direction = "client -> server"
	}
	fmt.Fprintf(params.Writer, "[%s] %s %s\n", params.Endpoint, direction, params.Packet)

	body, err := tdf.ToJSON(params.Packet.Body)
	if err != nil {
		fmt.Fprintf(params.Writer, "  <unprintable body: %v>\n", err)
		return
	}
	fmt.Fprintf(params.Writer, "  %s\n", body)
}

// DumpTree returns a verbose dump of a decoded tree including the Go types of
// every value, for use when the JSON rendering hides a type mismatch.
func DumpTree(v tdf.Value) string {
	return dumper.Sdump(v)
}
