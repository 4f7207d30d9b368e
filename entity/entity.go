// Package entity describes the boundary between the network session and whatever owns the simulated world.
//
// The session decodes spawn, transform and destroy messages into the tuples below and hands them to a Sink;
// the server answers resend requests from a Source. Table is an in-memory implementation of both.
package entity

import (
	"github.com/rflandau/voidnet/packet"
	"github.com/rs/zerolog"
)

// Spawn introduces an entity to a client.
type Spawn struct {
	ID       int32
	Type     string
	Position packet.Vector3
	Rotation packet.Rotation
	Scale    packet.Vector3
}

// Transform moves an existing entity. Sent over the datagram channel, so it may be lost or reordered.
type Transform struct {
	ID       int32
	Position packet.Vector3
	Rotation packet.Rotation
}

// A Sink receives decoded entity events on the dispatch goroutine.
type Sink interface {
	Spawn(Spawn)
	Transform(Transform)
	Destroy(id int32)
}

// A Source can describe a live entity so it can be spawned again for a client that missed it.
type Source interface {
	Lookup(id int32) (Spawn, bool)
}

// Zerolog attaches the spawn's fields to the event.
func (s Spawn) Zerolog(e *zerolog.Event) {
	e.Int32("entity", s.ID).Str("type", s.Type).
		Floats32("position", []float32{s.Position.X, s.Position.Y, s.Position.Z})
}

//#region wire

// Encode appends the spawn body: id, type, position, rotation, scale.
func (s Spawn) Encode(p *packet.Packet) {
	p.WriteInt32(s.ID)
	p.WriteString(s.Type)
	p.WriteVector3(s.Position)
	p.WriteRotation(s.Rotation)
	p.WriteVector3(s.Scale)
}

// DecodeSpawn reads a spawn body.
func DecodeSpawn(p *packet.Packet) (s Spawn, err error) {
	if s.ID, err = p.ReadInt32(); err != nil {
		return
	}
	if s.Type, err = p.ReadString(); err != nil {
		return
	}
	if s.Position, err = p.ReadVector3(); err != nil {
		return
	}
	if s.Rotation, err = p.ReadRotation(); err != nil {
		return
	}
	s.Scale, err = p.ReadVector3()
	return
}

// Encode appends the transform body: id, position, rotation.
func (t Transform) Encode(p *packet.Packet) {
	p.WriteInt32(t.ID)
	p.WriteVector3(t.Position)
	p.WriteRotation(t.Rotation)
}

// DecodeTransform reads a transform body.
func DecodeTransform(p *packet.Packet) (t Transform, err error) {
	if t.ID, err = p.ReadInt32(); err != nil {
		return
	}
	if t.Position, err = p.ReadVector3(); err != nil {
		return
	}
	t.Rotation, err = p.ReadRotation()
	return
}

// EncodeDestroy appends the destroy body: the entity id.
func EncodeDestroy(p *packet.Packet, id int32) { p.WriteInt32(id) }

// DecodeDestroy reads a destroy body.
func DecodeDestroy(p *packet.Packet) (int32, error) { return p.ReadInt32() }

//#endregion wire
