package topopack

// UnionFind groups ids into disjoint sets with path compression and union by rank.
type UnionFind struct {
	parent map[string]string
	rank   map[string]int
	order  []string
}

func NewUnionFind(ids []string) *UnionFind {
	uf := &UnionFind{
		parent: make(map[string]string, len(ids)),
		rank:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		uf.Add(id)
	}
	return uf
}

func (uf *UnionFind) Add(id string) {
	if _, ok := uf.parent[id]; ok {
		return
	}
	uf.parent[id] = id
	uf.order = append(uf.order, id)
}

// Find returns the representative of id's set. Unknown ids are their own set.
func (uf *UnionFind) Find(id string) string {
	p, ok := uf.parent[id]
	if !ok {
		return id
	}
	if p != id {
		p = uf.Find(p)
		uf.parent[id] = p
	}
	return p
}

// Union merges the sets of a and b. Ids never added are ignored.
func (uf *UnionFind) Union(a, b string) {
	if _, ok := uf.parent[a]; !ok {
		return
	}
	if _, ok := uf.parent[b]; !ok {
		return
	}
	ra, rb := uf.Find(a), uf.Find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// Groups returns every set, each in insertion order, ordered by their first member.
func (uf *UnionFind) Groups() [][]string {
	index := make(map[string]int)
	var out [][]string
	for _, id := range uf.order {
		root := uf.Find(id)
		i, ok := index[root]
		if !ok {
			i = len(out)
			index[root] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], id)
	}
	return out
}
