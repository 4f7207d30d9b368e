package main

import (
	"bytes"
	"net/netip"
	"strings"
	"testing"

	"github.com/rflandau/voidnet/config"
	. "github.com/rflandau/voidnet/internal/testsupport"
	"github.com/rflandau/voidnet/server"
	"github.com/rs/zerolog"
)

func TestStatusCmd(t *testing.T) {
	cfg := config.Default()
	l := zerolog.Nop()
	s, err := server.New(netip.MustParseAddrPort("127.0.0.1:0"), cfg.Codec(),
		server.WithLogger(&l),
		server.WithMaxClients(3),
		server.WithAdminAddr(netip.MustParseAddrPort("127.0.0.1:0")))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Stop)

	t.Run("summary", func(t *testing.T) {
		var out bytes.Buffer
		cmd := statusCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{s.AdminAddr().String()})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{cfg.Identity.ApplicationID, "listening: true", "slots: 0/3 occupied"} {
			if !strings.Contains(out.String(), want) {
				t.Error("status output is missing "+want, ExpectedActual(want, out.String()))
			}
		}
	})
	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		cmd := statusCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--json", "http://" + s.AdminAddr().String()})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), `"max-clients": 3`) {
			t.Error(ExpectedActual(`"max-clients": 3`, out.String()))
		}
	})
}

func TestDisconnectErr(t *testing.T) {
	if err := disconnectErr(""); err.Error() != "connection lost" {
		t.Error(ExpectedActual("connection lost", err.Error()))
	}
	if err := disconnectErr("KICKED"); !strings.Contains(err.Error(), "KICKED") {
		t.Error(ExpectedActual("disconnected by server: KICKED", err.Error()))
	}
}
