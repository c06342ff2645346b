// Package simtest provides small concrete implementations of the sim
// contracts for use in tests across the module.
package simtest

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// StickInput is a fixed-layout 8-byte input: a digital stick, buttons and an
// aim angle. The zero value is the empty sentinel.
type StickInput struct {
	X       int16
	Y       int16
	Buttons uint16
	Angle   uint16
}

func (s StickInput) IsEmpty() bool    { return s == StickInput{} }
func (s StickInput) EncodedSize() int { return 8 }

func (s StickInput) Encode(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:2], uint16(s.X))
	binary.LittleEndian.PutUint16(dst[2:4], uint16(s.Y))
	binary.LittleEndian.PutUint16(dst[4:6], s.Buttons)
	binary.LittleEndian.PutUint16(dst[6:8], s.Angle)
}

func (s StickInput) Decode(src []byte) StickInput {
	return StickInput{
		X:       int16(binary.LittleEndian.Uint16(src[0:2])),
		Y:       int16(binary.LittleEndian.Uint16(src[2:4])),
		Buttons: binary.LittleEndian.Uint16(src[4:6]),
		Angle:   binary.LittleEndian.Uint16(src[6:8]),
	}
}

// FakeState is an in-memory StateProvider backed by two byte regions.
type FakeState struct {
	Slab []byte
	Meta []byte
}

// NewFakeState returns a provider with the given region sizes, filled
// deterministically from seed.
func NewFakeState(slabSize, metaSize int, seed int64) *FakeState {
	s := &FakeState{
		Slab: make([]byte, slabSize),
		Meta: make([]byte, metaSize),
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Read(s.Slab)
	rng.Read(s.Meta)
	return s
}

func (s *FakeState) TotalSlabSize() int     { return len(s.Slab) }
func (s *FakeState) TotalMetaSize() int     { return len(s.Meta) }
func (s *FakeState) TotalSnapshotSize() int { return len(s.Slab) + len(s.Meta) }

func (s *FakeState) SaveTo(dst []byte)       { copy(dst, s.Slab) }
func (s *FakeState) LoadFrom(src []byte)     { copy(s.Slab, src) }
func (s *FakeState) SaveMetaTo(dst []byte)   { copy(dst, s.Meta) }
func (s *FakeState) LoadMetaFrom(src []byte) { copy(s.Meta, src) }

func (s *FakeState) ComputeStateHash() uint64 {
	h := fnv.New64a()
	h.Write(s.Slab)
	h.Write(s.Meta)
	return h.Sum64()
}

// Mutate perturbs the slab so successive frames hash differently.
func (s *FakeState) Mutate(step byte) {
	for i := range s.Slab {
		s.Slab[i] += step
	}
	if len(s.Meta) > 0 {
		s.Meta[0] += step
	}
}
