// Package comment builds and edits threaded reply trees. All functions are
// pure: inputs are never mutated.
package comment

import (
	"time"

	"github.com/genvid/genvid/engine/core"
)

type Comment struct {
	ID         core.ID    `json:"id"`
	Text       string     `json:"text"`
	ParentID   *core.ID   `json:"parent_id,omitempty"`
	AuthorName string     `json:"author,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitzero"`
	Replies    []*Comment `json:"replies"`
}

func (c Comment) isRoot() bool {
	return c.ParentID == nil || c.ParentID.IsZero()
}

// BuildTree nests a flat comment list. Roots keep their input order and so do
// the replies of every node. A comment whose parent is missing from the input
// is treated as a root, and a reply cycle is cut at its earliest listed
// member, which becomes a root.
func BuildTree(flat []Comment) []*Comment {
	nodes := make(map[core.ID]*Comment, len(flat))
	order := make([]core.ID, 0, len(flat))
	for i := range flat {
		if _, dup := nodes[flat[i].ID]; dup {
			continue
		}
		node := flat[i]
		node.Replies = []*Comment{}
		nodes[node.ID] = &node
		order = append(order, node.ID)
	}
	links := parentLinks(nodes, order)
	roots := make([]*Comment, 0)
	for _, id := range order {
		node := nodes[id]
		parentID, ok := links[id]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent := nodes[parentID]
		parent.Replies = append(parent.Replies, node)
	}
	return roots
}

// parentLinks maps every reply to a parent present in nodes, leaving out
// self references and one link per cycle.
func parentLinks(nodes map[core.ID]*Comment, order []core.ID) map[core.ID]core.ID {
	position := make(map[core.ID]int, len(order))
	links := make(map[core.ID]core.ID, len(order))
	for i, id := range order {
		position[id] = i
		c := nodes[id]
		if c.isRoot() || *c.ParentID == id {
			continue
		}
		if _, ok := nodes[*c.ParentID]; ok {
			links[id] = *c.ParentID
		}
	}
	resolved := make(map[core.ID]bool, len(order))
	for _, start := range order {
		onPath := make(map[core.ID]int)
		var path []core.ID
		for cur := start; !resolved[cur]; {
			if at, loop := onPath[cur]; loop {
				cut := path[at]
				for _, id := range path[at:] {
					if position[id] < position[cut] {
						cut = id
					}
				}
				delete(links, cut)
				break
			}
			onPath[cur] = len(path)
			path = append(path, cur)
			next, ok := links[cur]
			if !ok {
				break
			}
			cur = next
		}
		for _, id := range path {
			resolved[id] = true
		}
	}
	return links
}

// Insert returns a tree with c prepended to the replies of parentID, or to the
// roots when parentID is nil. Only the path to the insertion point is copied.
// When parentID matches no node the input tree is returned as is.
func Insert(tree []*Comment, parentID *core.ID, c Comment) []*Comment {
	node := c
	node.Replies = []*Comment{}
	if parentID == nil || parentID.IsZero() {
		node.ParentID = nil
		out := make([]*Comment, 0, len(tree)+1)
		out = append(out, &node)
		return append(out, tree...)
	}
	pid := *parentID
	node.ParentID = &pid
	out, ok := insertAt(tree, pid, &node)
	if !ok {
		return tree
	}
	return out
}

func insertAt(nodes []*Comment, parentID core.ID, child *Comment) ([]*Comment, bool) {
	for i, n := range nodes {
		var replaced *Comment
		if n.ID == parentID {
			cp := *n
			cp.Replies = make([]*Comment, 0, len(n.Replies)+1)
			cp.Replies = append(cp.Replies, child)
			cp.Replies = append(cp.Replies, n.Replies...)
			replaced = &cp
		} else if len(n.Replies) > 0 {
			replies, ok := insertAt(n.Replies, parentID, child)
			if ok {
				cp := *n
				cp.Replies = replies
				replaced = &cp
			}
		}
		if replaced != nil {
			out := make([]*Comment, len(nodes))
			copy(out, nodes)
			out[i] = replaced
			return out, true
		}
	}
	return nil, false
}

// Count returns the number of comments in the tree, replies included.
func Count(tree []*Comment) int {
	total := 0
	for _, c := range tree {
		total += 1 + Count(c.Replies)
	}
	return total
}

// Walk visits every node depth first with its nesting depth.
func Walk(tree []*Comment, fn func(c *Comment, depth int)) {
	walk(tree, 0, fn)
}

func walk(tree []*Comment, depth int, fn func(*Comment, int)) {
	for _, c := range tree {
		fn(c, depth)
		walk(c.Replies, depth+1, fn)
	}
}
