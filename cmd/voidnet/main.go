/*
voidnet runs a standalone relay server, connects to one as a chat client or queries a running server's admin API.
*/
package main

import (
	"fmt"
	"os"

	"github.com/rflandau/voidnet/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "voidnet",
		Short: "Game session networking over a reliable stream and an unreliable datagram channel",
		Long: `voidnet hosts and joins voidnet sessions.

A server hands each client a slot over TCP, authenticates it and then
exchanges messages with it over TCP and UDP. The serve and connect
commands share a TOML configuration; both sides must agree on the
application id, version, addressing mode and encryption.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to a TOML configuration file (defaults are used if omitted)")

	load := func() (config.Config, error) {
		if cfgPath == "" {
			return config.Default(), nil
		}
		return config.Load(cfgPath)
	}

	rootCmd.AddCommand(
		serveCmd(load),
		connectCmd(load),
		statusCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newLogger returns a console logger tagged with the side of the session it reports on.
func newLogger(side string, lvl zerolog.Level) *zerolog.Logger {
	l := zerolog.New(zerolog.ConsoleWriter{
		Out:         os.Stdout,
		FieldsOrder: []string{"side"},
		TimeFormat:  "15:04:05",
	}).With().
		Str("side", side).
		Timestamp().
		Caller().
		Logger().Level(lvl)
	return &l
}
