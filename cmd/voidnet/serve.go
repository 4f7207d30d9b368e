package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/config"
	"github.com/rflandau/voidnet/crypt"
	"github.com/rflandau/voidnet/entity"
	"github.com/rflandau/voidnet/server"
	"github.com/spf13/cobra"
)

func serveCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		host  string
		relay bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a server until interrupted",
		Long: `Run a server on the configured port until SIGINT or SIGTERM.

Client messages are logged and, with --relay, forwarded to every other
connected client. The admin API is served if admin.addr is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ip, err := netip.ParseAddr(host)
			if err != nil {
				return fmt.Errorf("parse host: %w", err)
			}
			cipher, err := crypt.New(cfg.Encryption)
			if err != nil {
				return err
			}
			log := newLogger("server", cfg.LogLevel)

			var (
				s     *server.Server
				world entity.Table
			)
			opts := []server.Option{
				server.WithLogger(log),
				server.WithMaxClients(cfg.MaxClients),
				server.WithPassword(cfg.Password),
				server.WithWelcomeTimeout(cfg.WelcomeTimeout),
				server.WithStrictAuth(cfg.StrictAuth),
				server.WithCipher(cipher),
				server.WithEntitySource(&world),
				server.OnConnected(func(id voidnet.SessionID) {
					log.Info().Int32("id", id).Msg("client joined")
				}),
				server.OnDisconnected(func(id voidnet.SessionID) {
					log.Info().Int32("id", id).Msg("client left")
				}),
				server.OnMessage(func(id voidnet.SessionID, text string) {
					log.Info().Int32("id", id).Str("text", text).Msg("message")
					if relay {
						if err := s.SendMessageToAll(fmt.Sprintf("[%d] %s", id, text), id); err != nil {
							log.Warn().Err(err).Msg("failed to relay message")
						}
					}
				}),
			}
			if cfg.AdminAddr != "" {
				opts = append(opts, server.WithAdminAddr(netip.MustParseAddrPort(cfg.AdminAddr)))
			}

			s, err = server.New(netip.AddrPortFrom(ip, cfg.Port), cfg.Codec(), opts...)
			if err != nil {
				return err
			}
			if err := s.Start(); err != nil {
				return err
			}
			defer s.Stop()
			log.Warn().Func(s.Zerolog).Msg("serving; send SIGINT to stop")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := s.Executor().Tick(ctx, cfg.TickInterval()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Warn().Msg("shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "address to listen on")
	cmd.Flags().BoolVar(&relay, "relay", true, "forward each client message to every other client")

	return cmd
}
