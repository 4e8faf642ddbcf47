package ir

import "fmt"

// Walk visits n and its descendants in pre-order. Children of a node are
// skipped when fn returns false.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Rewrite replaces nodes bottom-up. fn receives a node whose children were
// already rewritten and returns its replacement, which may be the node itself.
// A nil replacement removes the child from its parent.
func Rewrite(n *Node, fn func(*Node) *Node) *Node {
	if n == nil {
		return nil
	}
	kept := n.Children[:0]
	for _, c := range n.Children {
		if r := Rewrite(c, fn); r != nil {
			kept = append(kept, r)
		}
	}
	n.Children = kept
	return fn(n)
}

// Clone returns a deep copy of n.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = Clone(child)
		}
	}
	return &c
}

// Count returns the number of nodes in the tree.
func Count(n *Node) int {
	total := 0
	Walk(n, func(*Node) bool {
		total++
		return true
	})
	return total
}

// OwnershipError reports a node reached twice from one root, or a nil child.
type OwnershipError struct {
	Node   *Node
	Parent *Node
}

func (e *OwnershipError) Error() string {
	if e.Node == nil {
		return fmt.Sprintf("ir: nil child under %s", e.Parent)
	}
	return fmt.Sprintf("ir: node %s is shared (reached again under %s)", e.Node, e.Parent)
}

// CheckOwnership verifies that every node below root is reachable exactly
// once.
func CheckOwnership(root *Node) error {
	if root == nil {
		return fmt.Errorf("ir: nil root")
	}
	seen := map[*Node]struct{}{root: {}}
	var check func(parent *Node) error
	check = func(parent *Node) error {
		for _, c := range parent.Children {
			if c == nil {
				return &OwnershipError{Parent: parent}
			}
			if _, dup := seen[c]; dup {
				return &OwnershipError{Node: c, Parent: parent}
			}
			seen[c] = struct{}{}
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	return check(root)
}

// Detach removes and returns the children of n.
func Detach(n *Node) []*Node {
	out := n.Children
	n.Children = nil
	return out
}
