package server

// handlers.go contains the built-in handlers for messages every client may send.
// Each runs on the executor after the message's identifier and verification stamp have been checked.

import (
	"github.com/rflandau/voidnet"
	"github.com/rflandau/voidnet/entity"
	"github.com/rflandau/voidnet/packet"
	"github.com/rflandau/voidnet/protocol"
)

// handleWelcomeReceived authenticates a slot from its welcome acknowledgement: [int32 claimed id][bool password empty][string password].
// A wrong password or a claimed id other than the slot's own disconnects the slot.
func (s *Server) handleWelcomeReceived(sender voidnet.SessionID, p *packet.Packet) {
	c := s.slots[sender].current()
	if c == nil {
		return
	}

	claimed, err := p.ReadInt32()
	if err != nil {
		s.log.Warn().Err(err).Int32("slot", sender).Msg("malformed welcome acknowledgement")
		return
	}
	empty, err := p.ReadBool()
	if err != nil {
		s.log.Warn().Err(err).Int32("slot", sender).Msg("malformed welcome acknowledgement")
		return
	}
	var pass string
	if !empty {
		if pass, err = p.ReadString(); err != nil {
			s.log.Warn().Err(err).Int32("slot", sender).Msg("malformed welcome acknowledgement")
			return
		}
	}

	if c.verified {
		s.log.Debug().Int32("slot", sender).Msg("ignoring repeated welcome acknowledgement")
		return
	}
	if !s.checkPassword(pass) {
		s.log.Info().Int32("slot", sender).Msg("client tried to join with an incorrect password")
		s.disconnect(c, voidnet.ReasonWrongPassword)
		return
	}
	if claimed != sender {
		s.log.Info().Int32("slot", sender).Int32("claimed", claimed).Msg("client assumed the wrong id")
		s.disconnect(c, voidnet.ReasonFalseID)
		return
	}
	if !s.pendingWelcomes.Delete(c) {
		// the deadline fired first; the disconnect is already underway
		return
	}

	c.verified = true
	c.connected.Store(true)
	s.metrics.connected.Inc()
	s.log.Info().Int32("slot", sender).Str("remote", c.stream.RemoteAddr().String()).Msg("client connected")
	if s.events.connected != nil {
		s.events.connected(sender)
	}
}

// handleMessage surfaces the text of a CLIENT_MESSAGE through OnMessage.
func (s *Server) handleMessage(sender voidnet.SessionID, p *packet.Packet) {
	text, err := p.ReadString()
	if err != nil {
		s.log.Warn().Err(err).Int32("slot", sender).Msg("malformed client message")
		return
	}
	s.log.Debug().Int32("slot", sender).Str("text", text).Msg("client message")
	if s.events.message != nil {
		s.events.message(sender, text)
	}
}

// handleResendEntity spawns the requested entity again for the sender alone.
func (s *Server) handleResendEntity(sender voidnet.SessionID, p *packet.Packet) {
	id, err := p.ReadInt32()
	if err != nil {
		s.log.Warn().Err(err).Int32("slot", sender).Msg("malformed resend request")
		return
	}
	if s.entities == nil {
		s.log.Warn().Int32("slot", sender).Int32("entity", id).Msg("resend requested but no entity source is configured")
		return
	}
	sp, found := s.entities.Lookup(id)
	if !found {
		s.log.Warn().Int32("slot", sender).Int32("entity", id).Msg("client requested resend of an entity that no longer exists")
		return
	}

	out, err := s.spawnMessage(sp)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compose spawn")
		return
	}
	defer out.Release()
	s.SendTCP(sender, out)
}

// spawnMessage composes a SERVER_SPAWN_NETWORKENTITY for sp.
func (s *Server) spawnMessage(sp entity.Spawn) (*packet.Packet, error) {
	out, err := s.codec.NewBuiltin(protocol.ServerSpawnEntity)
	if err != nil {
		return nil, err
	}
	sp.Encode(out)
	return out, nil
}
