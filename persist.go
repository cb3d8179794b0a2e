package reel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Format selects the project file encoding.
type Format uint8

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatForPath picks JSON for ".json" files and YAML otherwise.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// EncodeProject writes p to w.
func EncodeProject(w io.Writer, p *Project, f Format) error {
	if f == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("reel: encode project: %w", err)
		}
		return nil
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("reel: encode project: %w", err)
	}
	return enc.Close()
}

// DecodeProject reads a project from r.
func DecodeProject(r io.Reader, f Format) (*Project, error) {
	p := &Project{}
	var err error
	if f == FormatJSON {
		err = json.NewDecoder(r).Decode(p)
	} else {
		err = yaml.NewDecoder(r).Decode(p)
	}
	if err != nil {
		return nil, fmt.Errorf("reel: decode project: %w", err)
	}
	return p, nil
}

// SaveProject writes p to path in the format its extension implies.
func SaveProject(path string, p *Project) error {
	var buf bytes.Buffer
	if err := EncodeProject(&buf, p, FormatForPath(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("reel: save project: %w", err)
	}
	return nil
}

// LoadProject reads the project at path.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reel: load project: %w", err)
	}
	return DecodeProject(bytes.NewReader(data), FormatForPath(path))
}

// --- Tracks ---

// UnmarshalYAML fills in Opacity 1 and Visible true when the file omits
// them.
func (t *Track) UnmarshalYAML(node *yaml.Node) error {
	type plain Track
	p := plain{Opacity: 1, Visible: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*t = Track(p)
	return nil
}

// UnmarshalJSON fills in Opacity 1 and Visible true when the file omits
// them.
func (t *Track) UnmarshalJSON(data []byte) error {
	type plain Track
	p := plain{Opacity: 1, Visible: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Track(p)
	return nil
}

// --- Compositions ---

// nodeDoc is one registry entry. Exactly one of the pointers is set.
type nodeDoc struct {
	Track *Track     `yaml:"track,omitempty" json:"track,omitempty"`
	Clip  *Clip      `yaml:"clip,omitempty" json:"clip,omitempty"`
	Graph *GraphNode `yaml:"graph,omitempty" json:"graph,omitempty"`
}

func (d nodeDoc) node() (Node, error) {
	switch {
	case d.Track != nil && d.Clip == nil && d.Graph == nil:
		return d.Track, nil
	case d.Clip != nil && d.Track == nil && d.Graph == nil:
		if d.Clip.Properties == nil {
			d.Clip.Properties = NewPropertyMap()
		}
		return d.Clip, nil
	case d.Graph != nil && d.Track == nil && d.Clip == nil:
		if d.Graph.Properties == nil {
			d.Graph.Properties = NewPropertyMap()
		}
		return d.Graph, nil
	}
	return nil, projectErrorf("decode composition", "node entry must hold exactly one of track, clip or graph")
}

func toNodeDoc(n Node) nodeDoc {
	switch n := n.(type) {
	case *Track:
		return nodeDoc{Track: n}
	case *Clip:
		return nodeDoc{Clip: n}
	case *GraphNode:
		return nodeDoc{Graph: n}
	}
	return nodeDoc{}
}

type compositionFields Composition

type compositionDoc struct {
	compositionFields `yaml:",inline"`
	NodeList          []nodeDoc `yaml:"nodes" json:"nodes"`
}

// orderedNodes lists the hierarchy depth-first from the root track, then
// every node outside it (graph nodes, detached entries) by id, so saved
// files are stable.
func (c *Composition) orderedNodes() []Node {
	out := make([]Node, 0, len(c.Nodes))
	seen := make(map[uuid.UUID]bool, len(c.Nodes))
	var walk func(id uuid.UUID)
	walk = func(id uuid.UUID) {
		n, ok := c.Nodes[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, n)
		if t, ok := n.(*Track); ok {
			for _, child := range t.ChildIDs {
				walk(child)
			}
		}
	}
	walk(c.RootTrackID)
	rest := make([]Node, 0, len(c.Nodes)-len(out))
	for id, n := range c.Nodes {
		if !seen[id] {
			rest = append(rest, n)
		}
	}
	slices.SortFunc(rest, func(a, b Node) int {
		return strings.Compare(a.NodeID().String(), b.NodeID().String())
	})
	return append(out, rest...)
}

func (c *Composition) toDoc() compositionDoc {
	doc := compositionDoc{compositionFields: compositionFields(*c)}
	for _, n := range c.orderedNodes() {
		doc.NodeList = append(doc.NodeList, toNodeDoc(n))
	}
	return doc
}

func (c *Composition) fromDoc(doc compositionDoc) error {
	*c = Composition(doc.compositionFields)
	c.Nodes = make(map[uuid.UUID]Node, len(doc.NodeList))
	for _, nd := range doc.NodeList {
		n, err := nd.node()
		if err != nil {
			return err
		}
		if _, dup := c.Nodes[n.NodeID()]; dup {
			return projectErrorf("decode composition", "duplicate node id %s", n.NodeID())
		}
		c.Nodes[n.NodeID()] = n
	}
	if _, ok := c.Track(c.RootTrackID); !ok {
		return projectErrorf("decode composition", "root track %s of composition %q not found", c.RootTrackID, c.Name)
	}
	return nil
}

// MarshalYAML writes the node registry as an ordered list.
func (c *Composition) MarshalYAML() (any, error) { return c.toDoc(), nil }

// UnmarshalYAML rebuilds the node registry and checks the root track.
func (c *Composition) UnmarshalYAML(node *yaml.Node) error {
	var doc compositionDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	return c.fromDoc(doc)
}

// MarshalJSON writes the node registry as an ordered list.
func (c *Composition) MarshalJSON() ([]byte, error) { return json.Marshal(c.toDoc()) }

// UnmarshalJSON rebuilds the node registry and checks the root track.
func (c *Composition) UnmarshalJSON(data []byte) error {
	var doc compositionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return c.fromDoc(doc)
}
