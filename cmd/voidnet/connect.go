package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/client"
	"github.com/rflandau/voidnet/config"
	"github.com/rflandau/voidnet/crypt"
	"github.com/spf13/cobra"
)

func connectCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		password string
		messages []string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect <host:port>",
		Short: "Join a server and chat over it",
		Long: `Join the server at host:port.

Each --message is sent once the server has accepted the client, after
which the client disconnects. Without --message, every line read from
stdin is sent until EOF or SIGINT. Messages from the server are printed
as they arrive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("password") {
				cfg.Password = password
			}
			cipher, err := crypt.New(cfg.Encryption)
			if err != nil {
				return err
			}
			log := newLogger("client", cfg.LogLevel)

			var (
				joined = make(chan voidnet.SessionID, 1)
				left   = make(chan string, 1)
			)
			c, err := client.New(cfg.Codec(),
				client.WithLogger(log),
				client.WithPassword(cfg.Password),
				client.WithCipher(cipher),
				client.OnConnected(func(id voidnet.SessionID) { joined <- id }),
				client.OnDisconnected(func(reason string) { left <- reason }),
				client.OnMessage(func(text string) { fmt.Fprintln(cmd.OutOrStdout(), text) }),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go c.Executor().Tick(ctx, cfg.TickInterval())

			dialCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := c.Connect(dialCtx, args[0]); err != nil {
				return err
			}
			select {
			case id := <-joined:
				fmt.Fprintf(cmd.ErrOrStderr(), "joined as client %d\n", id)
			case reason := <-left:
				return disconnectErr(reason)
			case <-dialCtx.Done():
				c.Disconnect()
				return fmt.Errorf("no welcome from %s: %w", args[0], dialCtx.Err())
			}

			if len(messages) > 0 {
				for _, m := range messages {
					if err := c.SendMessage(m); err != nil {
						return err
					}
				}
				c.Disconnect()
				return nil
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					lines <- sc.Text()
				}
			}()
			for {
				select {
				case line, ok := <-lines:
					if !ok {
						c.Disconnect()
						return nil
					}
					if line = strings.TrimSpace(line); line == "" {
						continue
					}
					if err := c.SendMessage(line); err != nil {
						return err
					}
				case reason := <-left:
					return disconnectErr(reason)
				case <-ctx.Done():
					c.Disconnect()
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password to present (overrides the config)")
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "message to send before disconnecting; repeatable")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for the server's welcome")

	return cmd
}

// disconnectErr describes a disconnect the client did not ask for.
func disconnectErr(reason string) error {
	if reason == "" {
		return errors.New("connection lost")
	}
	return fmt.Errorf("disconnected by server: %s", reason)
}
