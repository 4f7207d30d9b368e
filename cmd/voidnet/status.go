package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rflandau/voidnet/server"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "status <admin host:port>",
		Short: "Print a running server's status",
		Long:  `Query the admin API of a running server and print its slots.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			if !strings.Contains(addr, "://") {
				addr = "http://" + addr
			}
			resp, sr, err := server.FetchStatus(addr)
			if err != nil {
				return err
			}
			if resp.StatusCode() != http.StatusOK {
				return fmt.Errorf("admin API answered %s", resp.Status())
			}
			out := cmd.OutOrStdout()
			if raw {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sr.Body)
			}

			st := sr.Body
			fmt.Fprintf(out, "%s %s (%s addressing)\n", st.ApplicationID, st.Version, st.Addressing)
			fmt.Fprintf(out, "listening: %v\n", st.Listening)
			fmt.Fprintf(out, "slots: %d/%d occupied, %d connected\n", st.Occupied, st.MaxClients, st.Connected)
			for _, sl := range st.Slots {
				datagram := sl.Datagram
				if datagram == "" {
					datagram = "-"
				}
				fmt.Fprintf(out, "  %4d  %-22s  %-22s  connected=%v\n", sl.ID, sl.Remote, datagram, sl.Connected)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "json", false, "print the raw JSON body")

	return cmd
}
