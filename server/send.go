package server

import (
	"slices"

	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/entity"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
)

// SendTCP writes p (header and body, no length) to the client in slot id over its stream.
// p is not modified or released.
func (s *Server) SendTCP(id voidnet.SessionID, p *packet.Packet) error {
	if !s.validSlot(id) {
		return ErrBadSlot(id, s.maxClients)
	}
	c := s.slots[id].current()
	if c == nil {
		return ErrSlotEmpty
	}
	return c.stream.Send(p)
}

// SendUDP writes p to the client in slot id over the datagram channel.
// Fails if the client has not bound an endpoint yet. Delivery is never guaranteed.
func (s *Server) SendUDP(id voidnet.SessionID, p *packet.Packet) error {
	if !s.validSlot(id) {
		return ErrBadSlot(id, s.maxClients)
	}
	udp := s.net.udp.Load()
	if udp == nil {
		return ErrNotListening
	}
	ep, ok := s.slots[id].datagramEndpoint()
	if !ok {
		return ErrUnbound
	}
	return udp.Send(ep, p)
}

// SendTCPToAll writes p to every connected client, skipping the slots in except.
// Individual failures are logged by the stream and otherwise ignored.
func (s *Server) SendTCPToAll(p *packet.Packet, except ...voidnet.SessionID) {
	for _, id := range s.ConnectedIDs() {
		if !slices.Contains(except, id) {
			s.SendTCP(id, p)
		}
	}
}

// SendUDPToAll writes p to every connected client with a bound endpoint, skipping the slots in except.
func (s *Server) SendUDPToAll(p *packet.Packet, except ...voidnet.SessionID) {
	for _, id := range s.ConnectedIDs() {
		if !slices.Contains(except, id) {
			s.SendUDP(id, p)
		}
	}
}

// SendMessage sends text to the client in slot id as a SERVER_MESSAGE.
func (s *Server) SendMessage(id voidnet.SessionID, text string) error {
	p, err := s.codec.NewBuiltin(protocol.ServerMessage)
	if err != nil {
		return err
	}
	defer p.Release()
	p.WriteString(text)
	return s.SendTCP(id, p)
}

// SendMessageToAll sends text to every connected client except those in except.
func (s *Server) SendMessageToAll(text string, except ...voidnet.SessionID) error {
	p, err := s.codec.NewBuiltin(protocol.ServerMessage)
	if err != nil {
		return err
	}
	defer p.Release()
	p.WriteString(text)
	s.SendTCPToAll(p, except...)
	return nil
}

//#region entities

// SpawnEntity introduces sp to every connected client.
func (s *Server) SpawnEntity(sp entity.Spawn) error {
	p, err := s.spawnMessage(sp)
	if err != nil {
		return err
	}
	defer p.Release()
	s.SendTCPToAll(p)
	return nil
}

// TransformEntity sends tr to every connected client over the datagram channel.
// Clients may miss or reorder transforms; send them continuously.
func (s *Server) TransformEntity(tr entity.Transform) error {
	p, err := s.codec.NewBuiltin(protocol.ServerTransformEntity)
	if err != nil {
		return err
	}
	defer p.Release()
	tr.Encode(p)
	s.SendUDPToAll(p)
	return nil
}

// DestroyEntity tells every connected client that entity id is gone.
func (s *Server) DestroyEntity(id int32) error {
	p, err := s.codec.NewBuiltin(protocol.ServerDestroyEntity)
	if err != nil {
		return err
	}
	defer p.Release()
	entity.EncodeDestroy(p, id)
	s.SendTCPToAll(p)
	return nil
}

//#endregion entities
