package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// stateDigest hashes everything that determines future ticks: clock, parameters,
// scheduler position and every live agent in spawn order.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteF64(h, &tmp, w.elapsed)
	digestWriteF64(h, &tmp, w.params.SpeedUnitsPerSec)
	digestWriteF64(h, &tmp, w.params.RatePerMinute)
	digestWriteF64(h, &tmp, w.params.WallHeight)
	digestWriteU64(h, &tmp, uint64(w.scheduler.Created()))
	digestWriteF64(h, &tmp, w.scheduler.Origin())
	digestWriteU64(h, &tmp, w.registry.Spawned())
	digestWriteU64(h, &tmp, w.removedTotal)

	for _, a := range w.registry.Snapshot() {
		h.Write([]byte(a.ID))
		h.Write([]byte{0})
		digestWriteF64(h, &tmp, a.Pos.X)
		digestWriteF64(h, &tmp, a.Pos.Z)
		digestWriteU64(h, &tmp, uint64(len(a.Path)))
		for _, wp := range a.Path {
			digestWriteF64(h, &tmp, wp.X)
			digestWriteF64(h, &tmp, wp.Z)
			h.Write([]byte{boolByte(wp.Outside)})
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
