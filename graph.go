package reel

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Pin names and type prefixes used by graph analysis.
const (
	PinImageIn  = "image_in"
	PinImageOut = "image_out"
	PinShapeIn  = "shape_in"
	PinShapeOut = "shape_out"

	TypeTransform = "compositing.transform"

	prefixEffect    = "effect."
	prefixStyle     = "style."
	prefixEffector  = "effector."
	prefixDecorator = "decorator."
)

func (c *Composition) graphNodeHasPrefix(id uuid.UUID, prefix string) bool {
	g, ok := c.GraphNode(id)
	return ok && strings.HasPrefix(g.TypeID, prefix)
}

func (c *Composition) isTransformNode(id uuid.UUID) bool {
	g, ok := c.GraphNode(id)
	return ok && g.TypeID == TypeTransform
}

// InputConnection returns the connection feeding the input pin.
func (c *Composition) InputConnection(pin PinID) (Connection, bool) {
	for _, conn := range c.Connections {
		if conn.To == pin {
			return conn, true
		}
	}
	return Connection{}, false
}

// EffectChain follows image_out→image_in from the clip through effect
// nodes and returns their ids in processing order.
func (c *Composition) EffectChain(clipID uuid.UUID) []uuid.UUID {
	var chain []uuid.UUID
	current := Pin(clipID, PinImageOut)
	for {
		i := slices.IndexFunc(c.Connections, func(conn Connection) bool {
			return conn.From == current && conn.To.Pin == PinImageIn &&
				c.graphNodeHasPrefix(conn.To.NodeID, prefixEffect)
		})
		if i < 0 {
			break
		}
		next := c.Connections[i].To.NodeID
		if slices.Contains(chain, next) {
			break
		}
		chain = append(chain, next)
		current = Pin(next, PinImageOut)
	}
	return chain
}

// AssociatedStyles returns the style nodes chained into id's style_in pin,
// furthest first.
func (c *Composition) AssociatedStyles(id uuid.UUID) []uuid.UUID {
	return c.associatedByCategory(id, prefixStyle)
}

// AssociatedEffectors returns the effector nodes chained into id's
// effector_in pin, furthest first.
func (c *Composition) AssociatedEffectors(id uuid.UUID) []uuid.UUID {
	return c.associatedByCategory(id, prefixEffector)
}

// AssociatedDecorators returns the decorator nodes chained into id's
// decorator_in pin, furthest first.
func (c *Composition) AssociatedDecorators(id uuid.UUID) []uuid.UUID {
	return c.associatedByCategory(id, prefixDecorator)
}

// associatedByCategory walks backward from <category>_in through nodes whose
// type starts with prefix, then reverses so the furthest node comes first.
func (c *Composition) associatedByCategory(id uuid.UUID, prefix string) []uuid.UUID {
	pinName := strings.TrimSuffix(prefix, ".") + "_in"

	var chain []uuid.UUID
	current := Pin(id, pinName)
	for {
		conn, ok := c.InputConnection(current)
		if !ok {
			break
		}
		src := conn.From.NodeID
		if !c.graphNodeHasPrefix(src, prefix) || slices.Contains(chain, src) {
			break
		}
		chain = append(chain, src)
		current = Pin(src, pinName)
	}
	slices.Reverse(chain)
	return chain
}

// ValidateConnection reports why conn cannot be added, or nil.
func (c *Composition) ValidateConnection(conn Connection) error {
	const op = "validate connection"
	if _, ok := c.Nodes[conn.From.NodeID]; !ok {
		return projectErrorf(op, "Source node %s not found", conn.From.NodeID)
	}
	if _, ok := c.Nodes[conn.To.NodeID]; !ok {
		return projectErrorf(op, "Destination node %s not found", conn.To.NodeID)
	}
	if conn.From.NodeID == conn.To.NodeID {
		return projectErrorf(op, "Cannot connect a node to itself")
	}
	for _, existing := range c.Connections {
		if existing.To == conn.To && existing.ID != conn.ID {
			return projectErrorf(op, "Input pin %s.%s already has a connection", conn.To.NodeID, conn.To.Pin)
		}
	}
	if c.reachable(conn.To.NodeID, conn.From.NodeID) {
		return projectErrorf(op, "Connection would create a cycle")
	}
	return nil
}

// reachable reports whether to can be reached from from along existing
// connections (BFS).
func (c *Composition) reachable(from, to uuid.UUID) bool {
	visited := make(map[uuid.UUID]bool)
	queue := []uuid.UUID{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, conn := range c.Connections {
			if conn.From.NodeID == cur {
				queue = append(queue, conn.To.NodeID)
			}
		}
	}
	return false
}

// TopologicalSort orders the children of a track so that every connection
// between two of them runs from an earlier to a later entry. Ties keep child
// order.
func (c *Composition) TopologicalSort(containerID uuid.UUID) ([]uuid.UUID, error) {
	const op = "topological sort"
	track, ok := c.Track(containerID)
	if !ok {
		return nil, projectErrorf(op, "Container %s not found or not a track", containerID)
	}

	children := track.ChildIDs
	inDegree := make(map[uuid.UUID]int, len(children))
	adj := make(map[uuid.UUID][]uuid.UUID, len(children))
	for _, id := range children {
		inDegree[id] = 0
	}
	for _, conn := range c.Connections {
		_, fromIn := inDegree[conn.From.NodeID]
		_, toIn := inDegree[conn.To.NodeID]
		if fromIn && toIn {
			adj[conn.From.NodeID] = append(adj[conn.From.NodeID], conn.To.NodeID)
			inDegree[conn.To.NodeID]++
		}
	}

	queue := make([]uuid.UUID, 0, len(children))
	for _, id := range children {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sorted := make([]uuid.UUID, 0, len(children))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted = append(sorted, id)
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) != len(inDegree) {
		return nil, projectErrorf(op, "Cycle detected in container graph")
	}
	return sorted, nil
}

// ClipContext lists the graph nodes attached to one clip.
type ClipContext struct {
	// Transform is the compositing.transform node, or uuid.Nil.
	Transform  uuid.UUID
	Effects    []uuid.UUID
	Styles     []uuid.UUID
	Effectors  []uuid.UUID
	Decorators []uuid.UUID
}

// ResolveClipContext finds every graph node attached to a clip. Text and
// shape clips flow shape_out through effectors or decorators into a style,
// whose image_out feeds the transform; image and video clips feed the
// transform directly from image_out.
func (c *Composition) ResolveClipContext(clipID uuid.UUID) ClipContext {
	styles, transform := c.shapeChain(clipID)
	if transform == uuid.Nil {
		transform = c.connectedTransform(Pin(clipID, PinImageOut))
	}
	if len(styles) == 0 {
		styles = c.AssociatedStyles(clipID)
	}
	return ClipContext{
		Transform:  transform,
		Effects:    c.EffectChain(clipID),
		Styles:     styles,
		Effectors:  c.AssociatedEffectors(clipID),
		Decorators: c.AssociatedDecorators(clipID),
	}
}

func (c *Composition) shapeChain(clipID uuid.UUID) ([]uuid.UUID, uuid.UUID) {
	current := Pin(clipID, PinShapeOut)
	visited := make(map[uuid.UUID]bool)
	for {
		i := slices.IndexFunc(c.Connections, func(conn Connection) bool {
			return conn.From == current && conn.To.Pin == PinShapeIn
		})
		if i < 0 {
			return nil, uuid.Nil
		}
		next := c.Connections[i].To.NodeID
		if visited[next] {
			return nil, uuid.Nil
		}
		visited[next] = true
		if c.graphNodeHasPrefix(next, prefixStyle) {
			return []uuid.UUID{next}, c.connectedTransform(Pin(next, PinImageOut))
		}
		current = Pin(next, PinShapeOut)
	}
}

func (c *Composition) connectedTransform(out PinID) uuid.UUID {
	for _, conn := range c.Connections {
		if conn.From == out && conn.To.Pin == PinImageIn && c.isTransformNode(conn.To.NodeID) {
			return conn.To.NodeID
		}
	}
	return uuid.Nil
}

// CollectAssociatedNodes returns every graph node attached to a clip:
// transform, effects, styles, effectors and decorators, in that order.
func (c *Composition) CollectAssociatedNodes(clipID uuid.UUID) []uuid.UUID {
	ctx := c.ResolveClipContext(clipID)
	var out []uuid.UUID
	if ctx.Transform != uuid.Nil {
		out = append(out, ctx.Transform)
	}
	out = append(out, ctx.Effects...)
	out = append(out, ctx.Styles...)
	out = append(out, ctx.Effectors...)
	out = append(out, ctx.Decorators...)
	return out
}
