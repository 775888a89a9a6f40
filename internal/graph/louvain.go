package graph

// louvainCommunities partitions the graph by greedy modularity optimization
// (local moving + aggregation passes). Directed weights are symmetrized
// first; modularity is an undirected notion. Returned labels are contiguous
// ints stable only within one invocation.
func louvainCommunities(n int, out []map[int]float64) []int {
	if n == 0 {
		return nil
	}

	// symmetrize
	adj := make([]map[int]float64, n)
	for i := range adj {
		adj[i] = map[int]float64{}
	}
	for i, targets := range out {
		for j, w := range targets {
			if w <= 0 {
				continue
			}
			adj[i][j] += w
			if i != j {
				adj[j][i] += w
			}
		}
	}

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = i
	}

	levelAdj := adj
	levelSize := n
	for {
		moved, labels := louvainLocalMove(levelSize, levelAdj)
		labels, count := renumber(labels)

		// fold this level's labels into the original-node assignment
		for i := range assignment {
			assignment[i] = labels[assignment[i]]
		}
		if !moved || count == levelSize {
			break
		}

		// aggregate communities into a super-graph and go again
		next := make([]map[int]float64, count)
		for i := range next {
			next[i] = map[int]float64{}
		}
		for i, targets := range levelAdj {
			for j, w := range targets {
				if i > j {
					continue // symmetric pair already taken via (j, i)
				}
				ci, cj := labels[i], labels[j]
				next[ci][cj] += w
				if ci != cj {
					next[cj][ci] += w
				}
			}
		}
		levelAdj = next
		levelSize = count
	}

	final, _ := renumber(assignment)
	return final
}

// louvainLocalMove runs the node-moving phase until no node changes
// community. Returns whether anything moved at all.
func louvainLocalMove(n int, adj []map[int]float64) (bool, []int) {
	community := make([]int, n)
	degree := make([]float64, n)
	commTotal := make([]float64, n)
	m2 := 0.0 // 2m: total degree
	for i := range adj {
		community[i] = i
		for j, w := range adj[i] {
			degree[i] += w
			if i == j {
				degree[i] += w // self loop counts twice toward degree
			}
		}
		commTotal[i] = degree[i]
		m2 += degree[i]
	}
	if m2 == 0 {
		return false, community
	}

	movedAny := false
	for {
		movedPass := false
		for i := 0; i < n; i++ {
			current := community[i]

			// weight from i to each neighboring community
			neighWeight := map[int]float64{}
			for j, w := range adj[i] {
				if j == i {
					continue
				}
				neighWeight[community[j]] += w
			}

			commTotal[current] -= degree[i]

			bestComm := current
			bestGain := neighWeight[current] - commTotal[current]*degree[i]/m2
			for comm, w := range neighWeight {
				gain := w - commTotal[comm]*degree[i]/m2
				if gain > bestGain {
					bestGain = gain
					bestComm = comm
				}
			}

			commTotal[bestComm] += degree[i]
			if bestComm != current {
				community[i] = bestComm
				movedPass = true
				movedAny = true
			}
		}
		if !movedPass {
			break
		}
	}
	return movedAny, community
}

// renumber maps arbitrary labels onto 0..k-1 in first-seen order.
func renumber(labels []int) ([]int, int) {
	mapping := map[int]int{}
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := mapping[l]
		if !ok {
			id = len(mapping)
			mapping[l] = id
		}
		out[i] = id
	}
	return out, len(mapping)
}
