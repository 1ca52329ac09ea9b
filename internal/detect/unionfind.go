package detect

// disjointSet is a union-find forest over the indexes 0..n-1.
type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &disjointSet{parent: parent}
}

// find returns the root of i, compressing the path behind it.
func (d *disjointSet) find(i int) int {
	root := i
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[i] != root {
		next := d.parent[i]
		d.parent[i] = root
		i = next
	}
	return root
}

// union attaches b's tree under a's root.
func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra != rb {
		d.parent[rb] = ra
	}
}

// components returns the sets as index lists. Sets are ordered by their
// lowest member and members are ascending.
func (d *disjointSet) components() [][]int {
	slot := make(map[int]int)
	var out [][]int
	for i := range d.parent {
		root := d.find(i)
		k, ok := slot[root]
		if !ok {
			k = len(out)
			slot[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], i)
	}
	return out
}
