package state

import (
	"math"
	"sort"
)

// Ledger holds resource amounts. Iterate through Keys() when order matters.
type Ledger map[string]float64

// Add ignores non-finite deltas and drops entries that reach zero.
func (l Ledger) Add(res string, amount float64) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount == 0 {
		return
	}
	v := l[res] + amount
	if v == 0 {
		delete(l, res)
		return
	}
	l[res] = v
}

func (l Ledger) Get(res string) float64 { return l[res] }

// Take removes up to amount and returns what was removed.
func (l Ledger) Take(res string, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	have := l[res]
	if have <= 0 {
		return 0
	}
	if have <= amount {
		delete(l, res)
		return have
	}
	l[res] = have - amount
	return amount
}

func (l Ledger) Has(need map[string]float64, scale float64) bool {
	for _, res := range SortedKeys(need) {
		if l[res] < need[res]*scale {
			return false
		}
	}
	return true
}

func (l Ledger) Keys() []string { return SortedKeys(l) }

func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

func SortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
