package objects

import "path"

// mergedNode is one path's resolved state while folding a stack of Trees
// into a single overlay view.
type mergedNode struct {
	entry    Entry
	children map[string]*mergedNode // populated only when entry.Kind == EntryKindTree
}

// MergeStack folds an ordered, bottom-up list of layer root Trees into a
// single flattened path -> Entry view, applying the overlay rules: masks
// in upper layers hide lower-layer entries of the same path; otherwise
// upper entries replace lower entries of the same name; directories
// present in both sides are merged structurally (set union of children,
// recursively). The returned map never contains mask entries —
// a mask's only effect is to remove the path it names.
func MergeStack(resolver TreeResolver, roots []*Tree) (map[string]Entry, error) {
	var acc map[string]*mergedNode
	for _, root := range roots {
		var err error
		acc, err = mergeLayer(resolver, acc, root)
		if err != nil {
			return nil, err
		}
	}

	flat := make(map[string]Entry)
	flattenNodes(acc, "/", flat)
	return flat, nil
}

func mergeLayer(resolver TreeResolver, base map[string]*mergedNode, tree *Tree) (map[string]*mergedNode, error) {
	if base == nil {
		base = make(map[string]*mergedNode)
	}

	for _, e := range tree.Entries {
		switch e.Kind {
		case EntryKindMask:
			delete(base, e.Name)

		case EntryKindTree:
			sub, err := resolver.Tree(e.Object)
			if err != nil {
				return nil, err
			}

			var childBase map[string]*mergedNode
			if existing, ok := base[e.Name]; ok && existing.entry.Kind == EntryKindTree {
				childBase = existing.children
			}

			mergedChildren, err := mergeLayer(resolver, childBase, sub)
			if err != nil {
				return nil, err
			}
			base[e.Name] = &mergedNode{entry: e, children: mergedChildren}

		default: // blob: upper entry fully replaces whatever was at this name
			base[e.Name] = &mergedNode{entry: e}
		}
	}
	return base, nil
}

func flattenNodes(nodes map[string]*mergedNode, prefix string, out map[string]Entry) {
	for name, n := range nodes {
		p := path.Join(prefix, name)
		out[p] = n.entry
		if n.children != nil {
			flattenNodes(n.children, p, out)
		}
	}
}
