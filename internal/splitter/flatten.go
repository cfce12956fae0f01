package splitter

import (
	"fmt"

	"github.com/dgallion1/embedprep/internal/doctree"
)

// maxParentLevel caps the levels recorded in a section's parents map.
const maxParentLevel = 5

// flatten walks the outline depth-first, parent before children, threading a
// copy of the ancestor map so sibling subtrees never see each other's entries.
func flatten(nodes []*doctree.OutlineNode, parents map[string]string, out []doctree.Section) []doctree.Section {
	for _, node := range nodes {
		siblings := make([]string, len(node.Siblings))
		copy(siblings, node.Siblings)

		out = append(out, doctree.Section{
			Header: node.Header,
			Text:   node.Content,
			Level:  node.Level,
			Metadata: doctree.SectionMetadata{
				Parents:  copyParents(parents),
				Siblings: siblings,
			},
		})

		next := copyParents(parents)
		if node.Level <= maxParentLevel {
			next[fmt.Sprintf("h%d", node.Level)] = node.Header
		}
		out = flatten(node.Children, next, out)
	}
	return out
}

func copyParents(parents map[string]string) map[string]string {
	out := make(map[string]string, len(parents)+1)
	for k, v := range parents {
		out[k] = v
	}
	return out
}
