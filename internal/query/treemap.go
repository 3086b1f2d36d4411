package query

// TreemapRoot is the label of the treemap's top node.
const TreemapRoot = "world"

// TreemapNode is one rectangle of the world → region → country hierarchy.
// Value is the conflict count. Color is the fatality sum for countries and
// the conflict-weighted mean of the children's colors above that.
type TreemapNode struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Value    int           `json:"value"`
	Color    float64       `json:"color"`
	Children []TreemapNode `json:"children,omitempty"`
}

// Treemap is the hierarchy plus the color scale midpoint.
type Treemap struct {
	Root          TreemapNode `json:"root"`
	ColorMidpoint float64     `json:"color_midpoint"`
}

// BuildTreemap nests location rows under their regions in first-seen order.
// The color midpoint is the mean country fatality sum weighted by conflict
// count.
func BuildTreemap(rows []LocationRow) Treemap {
	root := TreemapNode{ID: TreemapRoot, Label: TreemapRoot}
	regionIdx := make(map[string]int)

	var weighted float64
	for _, r := range rows {
		pos, ok := regionIdx[r.Region]
		if !ok {
			pos = len(root.Children)
			regionIdx[r.Region] = pos
			root.Children = append(root.Children, TreemapNode{
				ID:    TreemapRoot + "/" + r.Region,
				Label: r.Region,
			})
		}
		region := &root.Children[pos]
		region.Children = append(region.Children, TreemapNode{
			ID:    region.ID + "/" + r.Country,
			Label: r.Country,
			Value: r.ConflictCount,
			Color: float64(r.FatalitySum),
		})
		weighted += float64(r.FatalitySum) * float64(r.ConflictCount)
	}

	for i := range root.Children {
		rollUp(&root.Children[i])
	}
	rollUp(&root)

	t := Treemap{Root: root}
	if root.Value > 0 {
		t.ColorMidpoint = weighted / float64(root.Value)
	}
	return t
}

func rollUp(n *TreemapNode) {
	if len(n.Children) == 0 {
		return
	}
	var value int
	var weighted float64
	for _, c := range n.Children {
		value += c.Value
		weighted += c.Color * float64(c.Value)
	}
	n.Value = value
	n.Color = 0
	if value > 0 {
		n.Color = weighted / float64(value)
	}
}
