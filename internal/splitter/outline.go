package splitter

import "github.com/dgallion1/embedprep/internal/doctree"

// siblingKey groups headers that share an immediate parent and a level. In
// the default mode the parent is identified by node; in legacy mode by its
// header text, with "root" standing for the top level.
type siblingKey struct {
	parent     *doctree.OutlineNode
	parentText string
	level      int
}

type stackEntry struct {
	node  *doctree.OutlineNode
	level int
}

// buildOutline turns the located headers and their contents into a tree.
func buildOutline(matches []headerMatch, bodies []string, legacy bool) *doctree.Outline {
	root := &doctree.OutlineNode{}
	var stack []stackEntry

	groups := make(map[siblingKey][]*doctree.OutlineNode)
	var order []siblingKey

	// Child index by header text, only consulted in legacy mode.
	byText := make(map[*doctree.OutlineNode]map[string]int)

	for i, m := range matches {
		// A header closes every open header at the same or a deeper level.
		for len(stack) > 0 && stack[len(stack)-1].level >= m.level {
			stack = stack[:len(stack)-1]
		}

		parent := root
		if len(stack) > 0 {
			parent = stack[len(stack)-1].node
		}

		node := &doctree.OutlineNode{
			Header:  m.text,
			Content: bodies[i],
			Level:   m.level,
		}

		if legacy {
			idx, ok := byText[parent]
			if !ok {
				idx = make(map[string]int)
				byText[parent] = idx
			}
			if pos, dup := idx[m.text]; dup {
				parent.Children[pos] = node
			} else {
				idx[m.text] = len(parent.Children)
				parent.Children = append(parent.Children, node)
			}
		} else {
			parent.Children = append(parent.Children, node)
		}

		key := siblingKey{level: m.level}
		if legacy {
			key.parentText = "root"
			if parent != root {
				key.parentText = parent.Header
			}
		} else {
			key.parent = parent
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], node)

		stack = append(stack, stackEntry{node: node, level: m.level})
	}

	for _, key := range order {
		group := groups[key]
		for _, node := range group {
			node.Siblings = siblingsOf(node, group, legacy)
		}
	}

	return &doctree.Outline{Children: root.Children}
}

// siblingsOf lists the group's headers in document order, without the node
// itself. Legacy mode drops every entry sharing the node's text.
func siblingsOf(node *doctree.OutlineNode, group []*doctree.OutlineNode, legacy bool) []string {
	out := make([]string, 0, len(group)-1)
	for _, other := range group {
		if other == node || (legacy && other.Header == node.Header) {
			continue
		}
		out = append(out, other.Header)
	}
	return out
}
