package fairness

import "math"

// flowEdge is one directed arc of the residual graph. Edges are stored in
// pairs: index i is the forward arc, i^1 is its paired reverse arc, the
// standard trick for O(1) residual updates.
type flowEdge struct {
	to, cap, cost, flow int
}

// flowGraph is a small edge-list min-cost-flow network, solved by repeated
// shortest-augmenting-path (Bellman-Ford/SPFA, since residual arcs carry
// negative cost and the node count here is always tiny).
type flowGraph struct {
	n     int
	adj   [][]int
	edges []flowEdge
}

func newFlowGraph(n int) *flowGraph {
	return &flowGraph{n: n, adj: make([][]int, n)}
}

func (g *flowGraph) addEdge(u, v, cap, cost int) {
	g.edges = append(g.edges, flowEdge{to: v, cap: cap, cost: cost})
	g.edges = append(g.edges, flowEdge{to: u, cap: 0, cost: -cost})
	g.adj[u] = append(g.adj[u], len(g.edges)-2)
	g.adj[v] = append(g.adj[v], len(g.edges)-1)
}

// shortestPath runs SPFA from s, returning per-node distance and the edge
// index used to reach each node, or ok=false if t is unreachable.
func (g *flowGraph) shortestPath(s, t int) (dist []int, viaEdge []int, ok bool) {
	const inf = math.MaxInt32
	dist = make([]int, g.n)
	viaEdge = make([]int, g.n)
	inQueue := make([]bool, g.n)
	for i := range dist {
		dist[i] = inf
		viaEdge[i] = -1
	}
	dist[s] = 0
	queue := []int{s}
	inQueue[s] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		inQueue[u] = false
		for _, ei := range g.adj[u] {
			e := g.edges[ei]
			if e.cap-e.flow <= 0 {
				continue
			}
			if nd := dist[u] + e.cost; nd < dist[e.to] {
				dist[e.to] = nd
				viaEdge[e.to] = ei
				if !inQueue[e.to] {
					queue = append(queue, e.to)
					inQueue[e.to] = true
				}
			}
		}
	}
	return dist, viaEdge, dist[t] < inf
}

// minCostFlow pushes up to maxFlow units of flow from s to t, always along
// the currently cheapest augmenting path, and returns the flow actually
// achieved and its total cost.
func (g *flowGraph) minCostFlow(s, t, maxFlow int) (flow, cost int) {
	for flow < maxFlow {
		dist, viaEdge, ok := g.shortestPath(s, t)
		if !ok {
			break
		}
		// bottleneck along the path
		push := maxFlow - flow
		for v := t; v != s; {
			ei := viaEdge[v]
			e := g.edges[ei]
			if rem := e.cap - e.flow; rem < push {
				push = rem
			}
			v = g.edges[ei^1].to
		}
		for v := t; v != s; {
			ei := viaEdge[v]
			g.edges[ei].flow += push
			g.edges[ei^1].flow -= push
			v = g.edges[ei^1].to
		}
		flow += push
		cost += push * dist[t]
	}
	return flow, cost
}
