package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"idlecity.ai/internal/sim/state"
)

// StateDigest hashes the full game state. Two worlds with equal digests are in the same
// state.
func (w *World) StateDigest() string { return Digest(w.st) }

func Digest(st *state.GameState) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteString(h, &tmp, st.City)
	digestWriteI64(h, &tmp, st.Seed)
	digestWriteU64(h, &tmp, st.Tick)
	digestWriteU64(h, &tmp, uint64(st.NextTransportID))
	digestWriteU64(h, &tmp, st.LastPriceUpdated)
	h.Write([]byte{boolByte(st.IsOffline)})

	digestWriteStrings(h, &tmp, st.UnlockedTechIDs())
	digestWriteStrings(h, &tmp, st.UnlockedRegionIDs())
	people := state.SortedKeys(st.GreatPeople)
	digestWriteU64(h, &tmp, uint64(len(people)))
	for _, id := range people {
		digestWriteString(h, &tmp, id)
		digestWriteI64(h, &tmp, int64(st.GreatPeople[id]))
	}
	digestWriteU64(h, &tmp, uint64(len(st.GreatPeopleChoices)))
	for _, c := range st.GreatPeopleChoices {
		digestWriteStrings(h, &tmp, c[:])
	}

	digestWriteU64(h, &tmp, uint64(st.Tiles.Len()))
	st.Tiles.Each(func(t *state.Tile) {
		digestWriteU64(h, &tmp, uint64(t.XY))
		h.Write([]byte{boolByte(t.Explored)})
		var deposits []string
		for res, ok := range t.Deposit {
			if ok {
				deposits = append(deposits, res)
			}
		}
		sort.Strings(deposits)
		digestWriteStrings(h, &tmp, deposits)
		b := t.Building
		if b == nil {
			h.Write([]byte{0})
			return
		}
		h.Write([]byte{1})
		digestWriteString(h, &tmp, b.Type)
		digestWriteString(h, &tmp, string(b.Variant.Kind()))
		digestWriteI64(h, &tmp, int64(b.Level))
		digestWriteString(h, &tmp, string(b.Status))
		digestWriteI64(h, &tmp, int64(b.Progress))
		digestWriteLedger(h, &tmp, b.Resources)
		if m, ok := b.Variant.(*state.Market); ok {
			digestWriteU64(h, &tmp, uint64(len(m.Offers)))
			for _, o := range m.Offers {
				digestWriteString(h, &tmp, o.Sell)
				digestWriteString(h, &tmp, o.Buy)
				digestWriteF64(h, &tmp, o.Rate)
			}
		}
	})

	jobs := st.Transportation.All()
	digestWriteU64(h, &tmp, uint64(len(jobs)))
	for _, j := range jobs {
		digestWriteU64(h, &tmp, uint64(j.ID))
		digestWriteU64(h, &tmp, uint64(j.From))
		digestWriteU64(h, &tmp, uint64(j.To))
		digestWriteString(h, &tmp, j.Resource)
		digestWriteF64(h, &tmp, j.Amount)
		digestWriteString(h, &tmp, j.Fuel)
		digestWriteF64(h, &tmp, j.FuelAmount)
		digestWriteF64(h, &tmp, j.CurrentFuel)
		h.Write([]byte{boolByte(j.HasEnoughFuel)})
		digestWriteI64(h, &tmp, int64(j.TicksRequired))
		digestWriteI64(h, &tmp, int64(j.TicksElapsed))
		digestWriteI64(h, &tmp, int64(j.StalledTicks))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func digestWriteStrings(h hashWriter, tmp *[8]byte, ss []string) {
	digestWriteU64(h, tmp, uint64(len(ss)))
	for _, s := range ss {
		digestWriteString(h, tmp, s)
	}
}

func digestWriteLedger(h hashWriter, tmp *[8]byte, l state.Ledger) {
	keys := l.Keys()
	digestWriteU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		digestWriteString(h, tmp, k)
		digestWriteF64(h, tmp, l[k])
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
