// conflict.go derives transaction dependencies from declared write sets.
// Two transactions conflict when they write the same storage slot or both
// change an account's balance, nonce, or code. The analysis runs before
// any execution: block builders use it to size parallel schedules,
// auditors to measure contention.
//
// Detection walks the canonical list order, so output is deterministic:
// conflicts group by account, then slot, then index pair, with TxA < TxB.
package bal

import (
	"sort"
	"sync/atomic"

	"github.com/ethaccess/ethaccess/core/types"
)

// ConflictType classifies the kind of conflict between two transactions.
type ConflictType uint8

const (
	// ConflictWriteWrite means both transactions write the same storage slot.
	ConflictWriteWrite ConflictType = iota
	// ConflictAccountLevel means both transactions change the same account's
	// balance, nonce, or code.
	ConflictAccountLevel
)

// String returns a human-readable label for the conflict type.
func (ct ConflictType) String() string {
	switch ct {
	case ConflictWriteWrite:
		return "write-write"
	case ConflictAccountLevel:
		return "account-level"
	default:
		return "unknown"
	}
}

// Conflict records a single conflict between two transactions identified
// by their transaction indices. TxA always has the lower index.
type Conflict struct {
	TxA     int
	TxB     int
	Type    ConflictType
	Address types.Address
	Slot    types.Hash // zero for account-level conflicts
}

// ConflictMetrics collects statistics across analysis runs. Every public
// detector call counts as one run.
type ConflictMetrics struct {
	Runs             atomic.Uint64
	TotalPairs       atomic.Uint64 // tx pairs analyzed
	ConflictingPairs atomic.Uint64 // pairs with at least one conflict
	WriteWriteCount  atomic.Uint64
	AccountConflicts atomic.Uint64
	ParallelFeasible atomic.Uint64 // runs where some pair can run in parallel
	SerialRequired   atomic.Uint64 // runs where every pair conflicts
}

// Snapshot returns a copy of the current metric values.
func (cm *ConflictMetrics) Snapshot() ConflictMetricsSnapshot {
	return ConflictMetricsSnapshot{
		Runs:             cm.Runs.Load(),
		TotalPairs:       cm.TotalPairs.Load(),
		ConflictingPairs: cm.ConflictingPairs.Load(),
		WriteWriteCount:  cm.WriteWriteCount.Load(),
		AccountConflicts: cm.AccountConflicts.Load(),
		ParallelFeasible: cm.ParallelFeasible.Load(),
		SerialRequired:   cm.SerialRequired.Load(),
	}
}

// ConflictMetricsSnapshot is an immutable snapshot of conflict metrics.
type ConflictMetricsSnapshot struct {
	Runs             uint64
	TotalPairs       uint64
	ConflictingPairs uint64
	WriteWriteCount  uint64
	AccountConflicts uint64
	ParallelFeasible uint64
	SerialRequired   uint64
}

// ConflictDetector analyzes access lists for conflicts and dependency
// structure. Safe for concurrent use.
type ConflictDetector struct {
	metrics ConflictMetrics
}

// NewConflictDetector creates a detector with zeroed metrics.
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{}
}

// Metrics returns a reference to the detector's metrics collector.
func (d *ConflictDetector) Metrics() *ConflictMetrics {
	return &d.metrics
}

// DetectConflicts returns all pairwise conflicts declared by the list.
func (d *ConflictDetector) DetectConflicts(l *BlockAccessList) []Conflict {
	conflicts, txs := detectConflicts(l)
	d.record(conflicts, len(txs))
	return conflicts
}

// IsParallelFeasible reports whether at least two transactions in the list
// can execute in parallel, i.e. not every pair conflicts.
func (d *ConflictDetector) IsParallelFeasible(l *BlockAccessList) bool {
	conflicts, txs := detectConflicts(l)
	d.record(conflicts, len(txs))
	n := len(txs)
	if n < 2 {
		d.metrics.SerialRequired.Add(1)
		return false
	}
	pairs := make(map[[2]int]struct{})
	for _, c := range conflicts {
		pairs[[2]int{c.TxA, c.TxB}] = struct{}{}
	}
	if len(pairs) < n*(n-1)/2 {
		d.metrics.ParallelFeasible.Add(1)
		return true
	}
	d.metrics.SerialRequired.Add(1)
	return false
}

// BuildDependencyGraph maps every transaction index in the list to the
// sorted indices of earlier transactions it conflicts with. Transactions
// without dependencies map to nil, so the key set is the full transaction
// set of the list.
func (d *ConflictDetector) BuildDependencyGraph(l *BlockAccessList) map[int][]int {
	conflicts, txs := detectConflicts(l)
	d.record(conflicts, len(txs))

	graph := make(map[int][]int, len(txs))
	for idx := range txs {
		graph[idx] = nil
	}
	seen := make(map[[2]int]struct{})
	for _, c := range conflicts {
		edge := [2]int{c.TxA, c.TxB}
		if _, ok := seen[edge]; ok {
			continue
		}
		seen[edge] = struct{}{}
		graph[c.TxB] = append(graph[c.TxB], c.TxA)
	}
	for idx := range graph {
		if len(graph[idx]) > 1 {
			sort.Ints(graph[idx])
		}
	}
	return graph
}

// ConflictRate returns the fraction of analyzed pairs with at least one
// conflict, in [0, 1]. Returns 0 before any analysis.
func (d *ConflictDetector) ConflictRate() float64 {
	total := d.metrics.TotalPairs.Load()
	if total == 0 {
		return 0
	}
	return float64(d.metrics.ConflictingPairs.Load()) / float64(total)
}

func (d *ConflictDetector) record(conflicts []Conflict, txCount int) {
	d.metrics.Runs.Add(1)
	if n := uint64(txCount); n > 1 {
		d.metrics.TotalPairs.Add(n * (n - 1) / 2)
	}
	pairs := make(map[[2]int]struct{})
	for _, c := range conflicts {
		pairs[[2]int{c.TxA, c.TxB}] = struct{}{}
		switch c.Type {
		case ConflictWriteWrite:
			d.metrics.WriteWriteCount.Add(1)
		case ConflictAccountLevel:
			d.metrics.AccountConflicts.Add(1)
		}
	}
	d.metrics.ConflictingPairs.Add(uint64(len(pairs)))
}

// detectConflicts walks the list and returns every pairwise conflict plus
// the set of transaction indices seen. It tolerates unvalidated input:
// writer sets are deduplicated and sorted here rather than trusted.
func detectConflicts(l *BlockAccessList) ([]Conflict, map[int]struct{}) {
	if l == nil || len(l.Accounts) == 0 {
		return nil, nil
	}
	txs := make(map[int]struct{})
	var conflicts []Conflict

	for ai := range l.Accounts {
		ac := &l.Accounts[ai]
		for si := range ac.StorageChanges {
			sc := &ac.StorageChanges[si]
			writers := slotWriters(sc)
			for _, w := range writers {
				txs[w] = struct{}{}
			}
			for i := 0; i < len(writers); i++ {
				for j := i + 1; j < len(writers); j++ {
					conflicts = append(conflicts, Conflict{
						TxA: writers[i], TxB: writers[j],
						Type:    ConflictWriteWrite,
						Address: ac.Address,
						Slot:    sc.Slot,
					})
				}
			}
		}
		writers := accountWriters(ac)
		for _, w := range writers {
			txs[w] = struct{}{}
		}
		for i := 0; i < len(writers); i++ {
			for j := i + 1; j < len(writers); j++ {
				conflicts = append(conflicts, Conflict{
					TxA: writers[i], TxB: writers[j],
					Type:    ConflictAccountLevel,
					Address: ac.Address,
				})
			}
		}
	}
	return conflicts, txs
}

// slotWriters returns the distinct transaction indices writing a slot,
// ascending.
func slotWriters(sc *SlotChanges) []int {
	seen := make(map[int]struct{}, len(sc.Changes))
	writers := make([]int, 0, len(sc.Changes))
	for i := range sc.Changes {
		idx := int(sc.Changes[i].TxIndex)
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		writers = append(writers, idx)
	}
	sort.Ints(writers)
	return writers
}

// accountWriters returns the distinct transaction indices changing an
// account's balance, nonce, or code, ascending.
func accountWriters(ac *AccountChanges) []int {
	seen := make(map[int]struct{})
	var writers []int
	add := func(idx uint64) {
		i := int(idx)
		if _, ok := seen[i]; !ok {
			seen[i] = struct{}{}
			writers = append(writers, i)
		}
	}
	for i := range ac.BalanceChanges {
		add(ac.BalanceChanges[i].TxIndex)
	}
	for i := range ac.NonceChanges {
		add(ac.NonceChanges[i].TxIndex)
	}
	for i := range ac.CodeChanges {
		add(ac.CodeChanges[i].TxIndex)
	}
	sort.Ints(writers)
	return writers
}
