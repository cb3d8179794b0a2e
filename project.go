package reel

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// ClipKind identifies what a clip draws.
type ClipKind uint8

const (
	ClipVideo ClipKind = iota
	ClipImage
	ClipAudio
	ClipText
	ClipShape
	ClipSkSL
	ClipComposition
)

var clipKindNames = [...]string{"video", "image", "audio", "text", "shape", "sksl", "composition"}

func (k ClipKind) String() string {
	if int(k) < len(clipKindNames) {
		return clipKindNames[k]
	}
	return fmt.Sprintf("clip(%d)", k)
}

// ParseClipKind maps a project-file name back to a ClipKind.
func ParseClipKind(s string) (ClipKind, error) {
	for i, name := range clipKindNames {
		if name == s {
			return ClipKind(i), nil
		}
	}
	return 0, fmt.Errorf("reel: unknown clip kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k ClipKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ClipKind) UnmarshalText(b []byte) error {
	kind, err := ParseClipKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Node is an entry in a composition's node registry: a *Track, *Clip or
// *GraphNode.
type Node interface {
	NodeID() uuid.UUID
	cloneNode() Node
}

// Track is an ordered container. ChildIDs is the authoritative hierarchy
// and its order is the z-order, first child at the bottom.
type Track struct {
	ID        uuid.UUID   `yaml:"id" json:"id"`
	Name      string      `yaml:"name" json:"name"`
	ChildIDs  []uuid.UUID `yaml:"child_ids,omitempty" json:"child_ids,omitempty"`
	BlendMode BlendMode   `yaml:"blend_mode" json:"blend_mode"`
	Opacity   float64     `yaml:"opacity" json:"opacity"`
	Visible   bool        `yaml:"visible" json:"visible"`
}

// NewTrack returns a visible, fully opaque track with a fresh id.
func NewTrack(name string) *Track {
	return &Track{ID: uuid.New(), Name: name, Opacity: 1, Visible: true}
}

func (t *Track) NodeID() uuid.UUID { return t.ID }

func (t *Track) cloneNode() Node {
	c := *t
	c.ChildIDs = slices.Clone(t.ChildIDs)
	return &c
}

// AddChild appends id to the end of the child list.
func (t *Track) AddChild(id uuid.UUID) {
	t.ChildIDs = append(t.ChildIDs, id)
}

// InsertChild inserts id at index. An index past the end appends.
func (t *Track) InsertChild(index int, id uuid.UUID) {
	if index < 0 || index > len(t.ChildIDs) {
		t.ChildIDs = append(t.ChildIDs, id)
		return
	}
	t.ChildIDs = slices.Insert(t.ChildIDs, index, id)
}

// RemoveChild removes id and reports whether it was a child.
func (t *Track) RemoveChild(id uuid.UUID) bool {
	i := slices.Index(t.ChildIDs, id)
	if i < 0 {
		return false
	}
	t.ChildIDs = slices.Delete(t.ChildIDs, i, i+1)
	return true
}

// Instance is a style, effect, effector or decorator attached to a clip.
type Instance struct {
	ID         uuid.UUID    `yaml:"id" json:"id"`
	Type       string       `yaml:"type" json:"type"`
	Properties *PropertyMap `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// NewInstance returns an instance of typ with a fresh id.
func NewInstance(typ string, props *PropertyMap) Instance {
	if props == nil {
		props = NewPropertyMap()
	}
	return Instance{ID: uuid.New(), Type: typ, Properties: props}
}

func (in Instance) clone() Instance {
	in.Properties = in.Properties.Clone()
	return in
}

func cloneInstances(ins []Instance) []Instance {
	if ins == nil {
		return nil
	}
	out := make([]Instance, len(ins))
	for i, in := range ins {
		out[i] = in.clone()
	}
	return out
}

// DefaultClipFPS is the frame rate given to new clips.
const DefaultClipFPS = 30.0

// Clip is a timed piece of content on a track. InFrame and OutFrame are
// timeline-absolute and inclusive. SourceBeginFrame offsets into the source,
// counted in the clip's own FPS.
type Clip struct {
	ID          uuid.UUID  `yaml:"id" json:"id"`
	ReferenceID *uuid.UUID `yaml:"reference_id,omitempty" json:"reference_id,omitempty"`
	Kind        ClipKind   `yaml:"type" json:"type"`

	InFrame          int64   `yaml:"in_frame" json:"in_frame"`
	OutFrame         int64   `yaml:"out_frame" json:"out_frame"`
	SourceBeginFrame int64   `yaml:"source_begin_frame" json:"source_begin_frame"`
	DurationFrame    *int64  `yaml:"duration_frame,omitempty" json:"duration_frame,omitempty"`
	FPS              float64 `yaml:"fps" json:"fps"`

	Properties *PropertyMap `yaml:"properties" json:"properties"`
	Styles     []Instance   `yaml:"styles,omitempty" json:"styles,omitempty"`
	Effects    []Instance   `yaml:"effects,omitempty" json:"effects,omitempty"`
	Effectors  []Instance   `yaml:"effectors,omitempty" json:"effectors,omitempty"`
	Decorators []Instance   `yaml:"decorators,omitempty" json:"decorators,omitempty"`
}

// NewClip returns a clip spanning [in, out] with a fresh id and empty
// properties.
func NewClip(kind ClipKind, in, out int64) *Clip {
	return &Clip{
		ID:         uuid.New(),
		Kind:       kind,
		InFrame:    in,
		OutFrame:   out,
		FPS:        DefaultClipFPS,
		Properties: NewPropertyMap(),
	}
}

// NewCompositionClip returns a clip that renders the composition ref.
func NewCompositionClip(ref uuid.UUID, in, out int64) *Clip {
	c := NewClip(ClipComposition, in, out)
	c.ReferenceID = &ref
	return c
}

func (c *Clip) NodeID() uuid.UUID { return c.ID }

func (c *Clip) cloneNode() Node { return c.Clone() }

// Clone returns a deep copy.
func (c *Clip) Clone() *Clip {
	out := *c
	if c.ReferenceID != nil {
		ref := *c.ReferenceID
		out.ReferenceID = &ref
	}
	if c.DurationFrame != nil {
		d := *c.DurationFrame
		out.DurationFrame = &d
	}
	out.Properties = c.Properties.Clone()
	out.Styles = cloneInstances(c.Styles)
	out.Effects = cloneInstances(c.Effects)
	out.Effectors = cloneInstances(c.Effectors)
	out.Decorators = cloneInstances(c.Decorators)
	return &out
}

// ActiveAt reports whether the clip contributes to frame. Both ends are
// inclusive. Audio clips are never drawn.
func (c *Clip) ActiveAt(frame int64) bool {
	return c.Kind != ClipAudio && frame >= c.InFrame && frame <= c.OutFrame
}

// props returns the property map, allocating it if needed.
func (c *Clip) props() *PropertyMap {
	if c.Properties == nil {
		c.Properties = NewPropertyMap()
	}
	return c.Properties
}

// SetConstant sets a constant property on the clip.
func (c *Clip) SetConstant(name string, v Value) *Clip {
	c.props().SetConstant(name, v)
	return c
}

// Set stores a property on the clip.
func (c *Clip) Set(name string, p Property) *Clip {
	c.props().Set(name, p)
	return c
}

// GraphNode is a processing node wired by connections, such as an effect,
// style or transform. TypeID is namespaced by category, e.g. "effect.blur".
type GraphNode struct {
	ID         uuid.UUID    `yaml:"id" json:"id"`
	TypeID     string       `yaml:"type_id" json:"type_id"`
	Properties *PropertyMap `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// NewGraphNode returns a node of typeID with a fresh id.
func NewGraphNode(typeID string, props *PropertyMap) *GraphNode {
	if props == nil {
		props = NewPropertyMap()
	}
	return &GraphNode{ID: uuid.New(), TypeID: typeID, Properties: props}
}

func (g *GraphNode) NodeID() uuid.UUID { return g.ID }

func (g *GraphNode) cloneNode() Node {
	c := *g
	c.Properties = g.Properties.Clone()
	return &c
}

// PinID names one pin on one node.
type PinID struct {
	NodeID uuid.UUID `yaml:"node_id" json:"node_id"`
	Pin    string    `yaml:"pin" json:"pin"`
}

// Pin is shorthand for PinID{id, name}.
func Pin(id uuid.UUID, name string) PinID { return PinID{NodeID: id, Pin: name} }

func (p PinID) String() string { return p.NodeID.String() + "." + p.Pin }

// Connection is a directed edge from an output pin to an input pin.
type Connection struct {
	ID   uuid.UUID `yaml:"id" json:"id"`
	From PinID     `yaml:"from" json:"from"`
	To   PinID     `yaml:"to" json:"to"`
}

// NewConnection returns a connection with a fresh id.
func NewConnection(from, to PinID) Connection {
	return Connection{ID: uuid.New(), From: from, To: to}
}

// Composition is one timeline: a root track, a flat registry of every node
// reachable from it, and the connections between them.
type Composition struct {
	ID              uuid.UUID `yaml:"id" json:"id"`
	Name            string    `yaml:"name" json:"name"`
	Width           int       `yaml:"width" json:"width"`
	Height          int       `yaml:"height" json:"height"`
	FPS             float64   `yaml:"fps" json:"fps"`
	Duration        float64   `yaml:"duration" json:"duration"`
	BackgroundColor Color     `yaml:"background_color" json:"background_color"`
	ColorProfile    string    `yaml:"color_profile" json:"color_profile"`
	WorkAreaIn      int64     `yaml:"work_area_in" json:"work_area_in"`
	WorkAreaOut     int64     `yaml:"work_area_out" json:"work_area_out"`
	RootTrackID     uuid.UUID `yaml:"root_track_id" json:"root_track_id"`

	Nodes       map[uuid.UUID]Node `yaml:"-" json:"-"`
	Connections []Connection       `yaml:"connections,omitempty" json:"connections,omitempty"`
}

// NewComposition returns a composition with an empty root track. Duration
// is in seconds; the work area covers all of it.
func NewComposition(name string, width, height int, fps, duration float64) *Composition {
	root := NewTrack("root")
	c := &Composition{
		ID:              uuid.New(),
		Name:            name,
		Width:           width,
		Height:          height,
		FPS:             fps,
		Duration:        duration,
		BackgroundColor: ColorBlack,
		ColorProfile:    "sRGB",
		WorkAreaOut:     int64(duration * fps),
		RootTrackID:     root.ID,
		Nodes:           map[uuid.UUID]Node{root.ID: root},
	}
	return c
}

// Node returns the node registered under id.
func (c *Composition) Node(id uuid.UUID) (Node, bool) {
	n, ok := c.Nodes[id]
	return n, ok
}

// Track returns the track registered under id.
func (c *Composition) Track(id uuid.UUID) (*Track, bool) {
	t, ok := c.Nodes[id].(*Track)
	return t, ok
}

// Clip returns the clip registered under id.
func (c *Composition) Clip(id uuid.UUID) (*Clip, bool) {
	cl, ok := c.Nodes[id].(*Clip)
	return cl, ok
}

// GraphNode returns the graph node registered under id.
func (c *Composition) GraphNode(id uuid.UUID) (*GraphNode, bool) {
	g, ok := c.Nodes[id].(*GraphNode)
	return g, ok
}

// RootTrack returns the root track.
func (c *Composition) RootTrack() *Track {
	t, _ := c.Track(c.RootTrackID)
	return t
}

// AddNode registers n and appends it to the track parentID.
func (c *Composition) AddNode(parentID uuid.UUID, n Node) error {
	return c.InsertNode(parentID, -1, n)
}

// InsertNode registers n and inserts it at index among the children of the
// track parentID. A negative or past-the-end index appends.
func (c *Composition) InsertNode(parentID uuid.UUID, index int, n Node) error {
	parent, ok := c.Track(parentID)
	if !ok {
		return projectErrorf("add node", "container %s not found or not a track", parentID)
	}
	if _, exists := c.Nodes[n.NodeID()]; exists {
		return projectErrorf("add node", "node %s already exists", n.NodeID())
	}
	if c.Nodes == nil {
		c.Nodes = make(map[uuid.UUID]Node)
	}
	c.Nodes[n.NodeID()] = n
	parent.InsertChild(index, n.NodeID())
	return nil
}

// ParentOf returns the track whose children include id.
func (c *Composition) ParentOf(id uuid.UUID) (*Track, bool) {
	for _, n := range c.Nodes {
		if t, ok := n.(*Track); ok && slices.Contains(t.ChildIDs, id) {
			return t, true
		}
	}
	return nil, false
}

// RemoveNode unregisters id, detaches it from its parent and drops its
// connections. Removing a track removes its subtree. The root track cannot
// be removed.
func (c *Composition) RemoveNode(id uuid.UUID) error {
	if id == c.RootTrackID {
		return projectErrorf("remove node", "cannot remove the root track")
	}
	n, ok := c.Nodes[id]
	if !ok {
		return projectErrorf("remove node", "node %s not found", id)
	}
	if parent, ok := c.ParentOf(id); ok {
		parent.RemoveChild(id)
	}
	c.removeSubtree(n)
	return nil
}

func (c *Composition) removeSubtree(n Node) {
	if t, ok := n.(*Track); ok {
		for _, child := range t.ChildIDs {
			if cn, ok := c.Nodes[child]; ok {
				c.removeSubtree(cn)
			}
		}
	}
	id := n.NodeID()
	delete(c.Nodes, id)
	c.Connections = slices.DeleteFunc(c.Connections, func(conn Connection) bool {
		return conn.From.NodeID == id || conn.To.NodeID == id
	})
}

// AddConnection validates conn and adds it. Nothing changes on error.
func (c *Composition) AddConnection(conn Connection) error {
	if err := c.ValidateConnection(conn); err != nil {
		return err
	}
	c.Connections = append(c.Connections, conn)
	return nil
}

// RemoveConnection removes the connection with id.
func (c *Composition) RemoveConnection(id uuid.UUID) bool {
	n := len(c.Connections)
	c.Connections = slices.DeleteFunc(c.Connections, func(conn Connection) bool { return conn.ID == id })
	return len(c.Connections) != n
}

// Clips returns every clip reachable from the root track in depth-first
// z-order.
func (c *Composition) Clips() []*Clip {
	var out []*Clip
	visited := make(map[uuid.UUID]bool)
	var walk func(id uuid.UUID)
	walk = func(id uuid.UUID) {
		if visited[id] {
			return
		}
		visited[id] = true
		switch n := c.Nodes[id].(type) {
		case *Track:
			for _, child := range n.ChildIDs {
				walk(child)
			}
		case *Clip:
			out = append(out, n)
		}
	}
	walk(c.RootTrackID)
	return out
}

// Clone returns a deep copy.
func (c *Composition) Clone() *Composition {
	out := *c
	out.Nodes = make(map[uuid.UUID]Node, len(c.Nodes))
	for id, n := range c.Nodes {
		out.Nodes[id] = n.cloneNode()
	}
	out.Connections = slices.Clone(c.Connections)
	return &out
}

// Asset is an external media file referenced by clips.
type Asset struct {
	ID       uuid.UUID `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Path     string    `yaml:"path" json:"path"`
	Kind     string    `yaml:"kind" json:"kind"`
	Duration *float64  `yaml:"duration,omitempty" json:"duration,omitempty"`
}

// Project owns a set of compositions and the assets they use.
type Project struct {
	Name         string         `yaml:"name" json:"name"`
	Compositions []*Composition `yaml:"compositions" json:"compositions"`
	Assets       []Asset        `yaml:"assets,omitempty" json:"assets,omitempty"`
}

// NewProject returns an empty project.
func NewProject(name string) *Project {
	return &Project{Name: name}
}

// AddComposition appends comp.
func (p *Project) AddComposition(comp *Composition) {
	p.Compositions = append(p.Compositions, comp)
}

// Composition returns the composition with id.
func (p *Project) Composition(id uuid.UUID) (*Composition, bool) {
	for _, c := range p.Compositions {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// RemoveComposition removes the composition with id.
func (p *Project) RemoveComposition(id uuid.UUID) bool {
	n := len(p.Compositions)
	p.Compositions = slices.DeleteFunc(p.Compositions, func(c *Composition) bool { return c.ID == id })
	return len(p.Compositions) != n
}

// Clone returns a deep copy, suitable as an immutable snapshot for another
// goroutine.
func (p *Project) Clone() *Project {
	out := &Project{Name: p.Name, Assets: slices.Clone(p.Assets)}
	out.Compositions = make([]*Composition, len(p.Compositions))
	for i, c := range p.Compositions {
		out.Compositions[i] = c.Clone()
	}
	return out
}

// ValidateCompositionReference checks that a clip in composition parentID
// may reference composition refID: the reference must exist and must not
// lead back to parentID through nested composition clips.
func (p *Project) ValidateCompositionReference(parentID, refID uuid.UUID) error {
	if _, ok := p.Composition(refID); !ok {
		return projectErrorf("validate reference", "composition %s not found", refID)
	}
	visited := make(map[uuid.UUID]bool)
	queue := []uuid.UUID{refID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == parentID {
			return projectErrorf("validate reference", "composition %s would contain itself", parentID)
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		comp, ok := p.Composition(id)
		if !ok {
			continue
		}
		for _, n := range comp.Nodes {
			if cl, ok := n.(*Clip); ok && cl.Kind == ClipComposition && cl.ReferenceID != nil {
				queue = append(queue, *cl.ReferenceID)
			}
		}
	}
	return nil
}
