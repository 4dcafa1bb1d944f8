package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dcrodman/blaze/internal/blaze"
	"github.com/dcrodman/blaze/internal/core"
	"github.com/dcrodman/blaze/internal/redirector"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Prints the redirector's routing table",
	Run: func(cmd *cobra.Command, args []string) {
		printRoutes(os.Stdout, loadConfig())
	},
}

func printRoutes(w io.Writer, cfg *core.Config) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Service", "Client Type", "Hostname", "IP", "Port", "Secure"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, r := range blaze.Routes(cfg) {
		clientType := r.ClientType
		if clientType == redirector.AnyClientType {
			clientType = "any"
		}
		tw.Append([]string{
			r.ServiceName,
			clientType,
			r.Address.Hostname,
			r.Address.IP,
			fmt.Sprintf("%d", r.Address.Port),
			fmt.Sprintf("%t", r.Address.Secure),
		})
	}
	tw.Render()
}
