package server

/*
The admin API: a small huma service reporting slot occupancy, plus the prometheus scrape endpoint, served on their own address while the server listens.
*/

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	_API_NAME    = "voidnet admin"
	_API_VERSION = "1.0.0"
)

const (
	EP_STATUS  = "/status"
	EP_METRICS = "/metrics"
)

// SlotStatus describes one occupied slot.
type SlotStatus struct {
	ID        int32  `json:"id" required:"true" example:"1" doc:"slot number"`
	Remote    string `json:"remote" required:"true" example:"10.0.0.7:51234" doc:"address of the client's stream"`
	Datagram  string `json:"datagram,omitempty" example:"10.0.0.7:51234" doc:"bound datagram endpoint, if the client has sent its sentinel"`
	Connected bool   `json:"connected" doc:"has the client authenticated?"`
}

// Status is a snapshot of the server.
type Status struct {
	ApplicationID string       `json:"application-id" required:"true" example:"demo" doc:"application id the server verifies against"`
	Version       string       `json:"version" required:"true" example:"1.0.0" doc:"application version the server verifies against"`
	Addressing    string       `json:"addressing" required:"true" example:"string" doc:"identifier addressing mode"`
	Listening     bool         `json:"listening" doc:"is the server accepting connections?"`
	MaxClients    int          `json:"max-clients" required:"true" example:"16" doc:"number of slots"`
	Occupied      int          `json:"occupied" example:"3" doc:"slots holding a connection"`
	Connected     int          `json:"connected" example:"2" doc:"slots holding an authenticated client"`
	Slots         []SlotStatus `json:"slots" doc:"every occupied slot in ascending order"`
}

// Response for GET /status.
type StatusResp struct {
	Body Status
}

// buildAdmin composes the admin mux. Routes are built once; the listener comes and goes with Start and Stop.
func (s *Server) buildAdmin() {
	if !s.admin.addr.IsValid() {
		return
	}
	s.admin.mux = http.NewServeMux()
	s.admin.api = humago.New(s.admin.mux, huma.DefaultConfig(_API_NAME, _API_VERSION))

	huma.Register(s.admin.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        EP_STATUS,
		Summary:     "Slot occupancy and identity",
	}, func(ctx context.Context, _ *struct{}) (*StatusResp, error) {
		return &StatusResp{Body: s.Status()}, nil
	})
	s.admin.mux.Handle(EP_METRICS, promhttp.HandlerFor(s.admin.reg, promhttp.HandlerOpts{}))
}

// startAdmin binds the admin listener. Called from Start with net.mu held.
func (s *Server) startAdmin() error {
	if s.admin.mux == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.admin.addr.String())
	if err != nil {
		return err
	}
	s.admin.ln = ln
	s.admin.http = &http.Server{Handler: s.admin.mux, ReadHeaderTimeout: 5 * time.Second}
	s.log.Info().Str("admin address", ln.Addr().String()).Msg("serving admin API")
	return nil
}

// stopAdmin kills the admin server, if one is running. Called from Stop with net.mu held.
func (s *Server) stopAdmin() {
	if s.admin.http == nil {
		return
	}
	err := s.admin.http.Close()
	s.log.Info().AnErr("close error", err).Msg("killed admin server")
	s.admin.http, s.admin.ln = nil, nil
}

// AdminAddr returns the address the admin API is bound to.
// Invalid if the admin API is disabled or the server is not listening.
func (s *Server) AdminAddr() netip.AddrPort {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	if s.admin.ln == nil {
		return netip.AddrPort{}
	}
	return s.admin.ln.Addr().(*net.TCPAddr).AddrPort()
}

// Status returns a snapshot of the server's identity and slots.
func (s *Server) Status() Status {
	st := Status{
		ApplicationID: s.codec.Identity.ApplicationID,
		Version:       s.codec.Identity.Version,
		Addressing:    s.codec.Addressing.String(),
		Listening:     s.net.accepting.Load(),
		MaxClients:    s.maxClients,
		Slots:         []SlotStatus{},
	}
	for _, sl := range s.slots[1:] {
		c := sl.current()
		if c == nil {
			continue
		}
		ss := SlotStatus{ID: sl.id, Remote: c.stream.RemoteAddr().String(), Connected: c.connected.Load()}
		if ep, ok := sl.datagramEndpoint(); ok {
			ss.Datagram = ep.String()
		}
		st.Occupied++
		if ss.Connected {
			st.Connected++
		}
		st.Slots = append(st.Slots, ss)
	}
	return st
}
