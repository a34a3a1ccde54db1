// parallel.go schedules transactions into parallel execution waves from
// their declared write dependencies. A wave holds transactions whose
// dependencies all land in earlier waves; waves execute sequentially,
// members of one wave concurrently. ComputeParallelSets gives the
// order-free view: independence classes by greedy coloring.
package bal

import (
	"errors"
	"sort"
)

var (
	// ErrNoTransactions means the list declares no transaction-indexed
	// changes to schedule.
	ErrNoTransactions = errors.New("bal: no transactions to schedule")
	// ErrCyclicDependency means an externally supplied dependency graph
	// contains a cycle. Graphs built by ConflictDetector are acyclic since
	// edges always point from lower to higher index.
	ErrCyclicDependency = errors.New("bal: dependency graph contains a cycle")
)

// Wave is a set of transactions that can execute concurrently.
type Wave struct {
	TxIndices []int
}

// Waves partitions the transactions of a list into execution waves using
// the conflict-derived dependency graph.
func Waves(l *BlockAccessList) ([]Wave, error) {
	if l == nil || len(l.Accounts) == 0 {
		return nil, ErrNoTransactions
	}
	d := NewConflictDetector()
	return WavesFromGraph(d.BuildDependencyGraph(l))
}

// WavesFromGraph schedules an explicit dependency graph mapping each
// transaction to the transactions that must complete before it.
func WavesFromGraph(graph map[int][]int) ([]Wave, error) {
	if len(graph) == 0 {
		return nil, ErrNoTransactions
	}
	order, err := topoSort(graph)
	if err != nil {
		return nil, err
	}
	return buildWaves(order, graph), nil
}

// topoSort runs Kahn's algorithm over the dependency graph and returns a
// topological order, lowest index first among ready nodes.
func topoSort(graph map[int][]int) ([]int, error) {
	inDegree := make(map[int]int)
	forward := make(map[int][]int)

	for node := range graph {
		if _, ok := inDegree[node]; !ok {
			inDegree[node] = 0
		}
	}
	for node, deps := range graph {
		for _, dep := range deps {
			forward[dep] = append(forward[dep], node)
			inDegree[node]++
			if _, ok := inDegree[dep]; !ok {
				inDegree[dep] = 0
			}
		}
	}

	var queue []int
	for node, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, node)
		}
	}
	sort.Ints(queue)

	var order []int
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		neighbors := forward[node]
		sort.Ints(neighbors)
		for _, next := range neighbors {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
		sort.Ints(queue)
	}

	if len(order) != len(inDegree) {
		return nil, ErrCyclicDependency
	}
	return order, nil
}

// buildWaves assigns each transaction the level one past its deepest
// dependency and groups by level.
func buildWaves(order []int, graph map[int][]int) []Wave {
	if len(order) == 0 {
		return nil
	}

	level := make(map[int]int, len(order))
	maxLevel := 0
	for _, node := range order {
		deepest := -1
		for _, dep := range graph[node] {
			if l, ok := level[dep]; ok && l > deepest {
				deepest = l
			}
		}
		level[node] = deepest + 1
		if level[node] > maxLevel {
			maxLevel = level[node]
		}
	}

	waves := make([]Wave, maxLevel+1)
	for _, node := range order {
		l := level[node]
		waves[l].TxIndices = append(waves[l].TxIndices, node)
	}
	for i := range waves {
		sort.Ints(waves[i].TxIndices)
	}
	return waves
}

// ParallelismRatio returns transactions per wave for a schedule. 1 means
// fully serial; higher means more parallelism. Returns 1 for an empty
// schedule.
func ParallelismRatio(waves []Wave) float64 {
	if len(waves) == 0 {
		return 1
	}
	txs := 0
	for _, w := range waves {
		txs += len(w.TxIndices)
	}
	if txs == 0 {
		return 1
	}
	return float64(txs) / float64(len(waves))
}

// ExecutionGroup is a set of transactions with no conflicts between any
// two members.
type ExecutionGroup struct {
	TxIndices []int
}

// ComputeParallelSets groups transactions so that no two members of a
// group write the same slot or change the same account. Greedy coloring
// in ascending index order: deterministic, not necessarily minimal.
func ComputeParallelSets(l *BlockAccessList) []ExecutionGroup {
	conflicts, txSet := detectConflicts(l)
	if len(txSet) == 0 {
		return nil
	}
	txs := make([]int, 0, len(txSet))
	for idx := range txSet {
		txs = append(txs, idx)
	}
	sort.Ints(txs)

	adj := make(map[int]map[int]struct{})
	link := func(a, b int) {
		if adj[a] == nil {
			adj[a] = make(map[int]struct{})
		}
		adj[a][b] = struct{}{}
	}
	for _, c := range conflicts {
		link(c.TxA, c.TxB)
		link(c.TxB, c.TxA)
	}

	color := make(map[int]int, len(txs))
	groupCount := 0
	for _, idx := range txs {
		used := make(map[int]struct{})
		for n := range adj[idx] {
			if c, ok := color[n]; ok {
				used[c] = struct{}{}
			}
		}
		c := 0
		for {
			if _, taken := used[c]; !taken {
				break
			}
			c++
		}
		color[idx] = c
		if c+1 > groupCount {
			groupCount = c + 1
		}
	}

	groups := make([]ExecutionGroup, groupCount)
	for _, idx := range txs {
		c := color[idx]
		groups[c].TxIndices = append(groups[c].TxIndices, idx)
	}
	return groups
}

// MaxParallelism returns the size of the largest parallel group.
func MaxParallelism(l *BlockAccessList) int {
	max := 0
	for _, g := range ComputeParallelSets(l) {
		if len(g.TxIndices) > max {
			max = len(g.TxIndices)
		}
	}
	return max
}
