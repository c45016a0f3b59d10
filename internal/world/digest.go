package world

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"

	"github.com/l1jgo/rewind/internal/core/ecs"
	"golang.org/x/crypto/blake2b"
)

// Digest is a BLAKE2b-256 hash of the clock and every active entity's state.
// Two runs that reach the same world produce the same digest regardless of
// store order, so replay audits can compare rounds byte for byte.
type Digest [blake2b.Size256]byte

// Short returns the first 8 bytes in hex, for logs.
func (d Digest) Short() string { return hex.EncodeToString(d[:8]) }

// Digest hashes the current world.
func (s *State) Digest() Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only returned for an oversized key.
		panic(err)
	}
	put(h, s.sched.Frame())
	put(h, int64(s.sched.Elapsed()))

	hashStore(h, 'U', s.units, func(u *Unit) (any, bool) { return u.st, u.active })
	hashStore(h, 'A', s.units, func(u *Unit) (any, bool) { return u.anim.st, u.anim.active })
	hashStore(h, 'P', s.projectiles, func(p *Projectile) (any, bool) { return p.st, p.active })
	hashStore(h, 'B', s.barriers, func(b *Barrier) (any, bool) { return b.st, b.active })
	hashStore(h, 'S', s.shields, func(sh *Shield) (any, bool) { return sh.st, sh.active })
	hashStore(h, 'F', s.buffs, func(b *Buff) (any, bool) { return b.st, b.active })

	var d Digest
	h.Sum(d[:0])
	return d
}

// hashStore writes tag, then id and state of every active entry in id order.
func hashStore[T any](h hash.Hash, tag byte, store *ecs.Store[T], state func(*T) (any, bool)) {
	ids := store.IDs()
	slices.Sort(ids)
	put(h, tag)
	for _, id := range ids {
		v, _ := store.Get(id)
		st, ok := state(v)
		if !ok {
			continue
		}
		put(h, uint64(id))
		put(h, st)
	}
}

func put(h hash.Hash, v any) {
	if err := binary.Write(h, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}
