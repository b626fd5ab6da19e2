package cluster

import "context"

// HierarchicalNode is one level of the recursive clustering tree
// (§4.4 "Hierarchical mode").
type HierarchicalNode struct {
	Centroid []float32
	Members  []string // point IDs directly under this node (leaves only)
	Children []*HierarchicalNode
}

// HierarchicalOptions bounds the recursive clustering depth/fan-out.
type HierarchicalOptions struct {
	MaxDepth    int
	MinLeafSize int
	BranchK     int // clusters per recursion level
	Seed        int64
}

// Hierarchical recursively clusters leaves up to MaxDepth, provided
// each child would have at least MinLeafSize members; a split that
// would violate MinLeafSize collapses that branch into a single leaf
// node instead of subdividing further (§4.4).
func Hierarchical(ctx context.Context, points []Point, opt HierarchicalOptions) (*HierarchicalNode, error) {
	if opt.BranchK <= 0 {
		opt.BranchK = 3
	}
	if opt.MinLeafSize <= 0 {
		opt.MinLeafSize = 2
	}
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = 3
	}
	return buildLevel(ctx, points, opt, 0)
}

func buildLevel(ctx context.Context, points []Point, opt HierarchicalOptions, depth int) (*HierarchicalNode, error) {
	node := &HierarchicalNode{Centroid: meanVector(points)}

	if depth >= opt.MaxDepth || len(points) < opt.MinLeafSize*2 {
		for _, p := range points {
			node.Members = append(node.Members, p.ID)
		}
		return node, nil
	}

	k := opt.BranchK
	if k > len(points)/opt.MinLeafSize {
		k = len(points) / opt.MinLeafSize
	}
	if k < 2 {
		for _, p := range points {
			node.Members = append(node.Members, p.ID)
		}
		return node, nil
	}

	res, err := SphericalKMeans(ctx, points, KMeansOptions{K: k, Restarts: 3, Seed: opt.Seed})
	if err != nil {
		return nil, err
	}

	buckets := make([][]Point, k)
	byID := make(map[string]Point, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}
	for _, a := range res.Assignments {
		buckets[a.Cluster] = append(buckets[a.Cluster], byID[a.PointID])
	}

	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		if len(bucket) < opt.MinLeafSize {
			// Too small to recurse further: fold into a leaf at this level.
			leaf := &HierarchicalNode{Centroid: meanVector(bucket)}
			for _, p := range bucket {
				leaf.Members = append(leaf.Members, p.ID)
			}
			node.Children = append(node.Children, leaf)
			continue
		}
		child, err := buildLevel(ctx, bucket, opt, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	return node, nil
}

func meanVector(points []Point) []float32 {
	if len(points) == 0 {
		return nil
	}
	dim := len(points[0].Vector)
	sum := make([]float64, dim)
	for _, p := range points {
		for i, x := range p.Vector {
			sum[i] += float64(x)
		}
	}
	return normalize(sum)
}
