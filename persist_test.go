package reel

import (
	"bytes"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func persistProject(t *testing.T) (*Project, *Composition, *Track, *Clip) {
	t.Helper()
	p := NewProject("persist")
	comp := NewComposition("main", 1280, 720, 24, 4)
	comp.BackgroundColor = Color{10, 20, 30, 255}
	p.AddComposition(comp)

	track := NewTrack("text")
	track.Opacity = 0.5
	track.Visible = false
	track.BlendMode = BlendScreen
	if err := comp.AddNode(comp.RootTrackID, track); err != nil {
		t.Fatal(err)
	}
	clip := NewClip(ClipText, 0, 48)
	clip.SetConstant("text", StringValue("hello"))
	clip.Set("position", Keyframes(
		Keyframe{Time: 0, Value: NumberValue(0), Easing: Ease(EaseOutCubic)},
		Keyframe{Time: 1, Value: NumberValue(100)},
	))
	clip.Set("rotation", Expression("return t * 90"))
	clip.Styles = []Instance{NewInstance("style.fill", nil)}
	if err := comp.AddNode(track.ID, clip); err != nil {
		t.Fatal(err)
	}
	blur := NewGraphNode("effect.blur", NewPropertyMap().SetConstant("radius", NumberValue(4)))
	if err := comp.AddNode(comp.RootTrackID, blur); err != nil {
		t.Fatal(err)
	}
	if err := comp.AddConnection(NewConnection(Pin(clip.ID, "image_out"), Pin(blur.ID, "image_in"))); err != nil {
		t.Fatal(err)
	}
	return p, comp, track, clip
}

func checkRoundTrip(t *testing.T, got *Project, comp *Composition, track *Track, clip *Clip) {
	t.Helper()
	if got.Name != "persist" || len(got.Compositions) != 1 {
		t.Fatalf("project = %q with %d compositions", got.Name, len(got.Compositions))
	}
	c := got.Compositions[0]
	if c.ID != comp.ID || c.Width != 1280 || c.FPS != 24 || c.BackgroundColor != comp.BackgroundColor {
		t.Errorf("composition = %+v", c)
	}
	if len(c.Nodes) != len(comp.Nodes) {
		t.Errorf("nodes = %d, want %d", len(c.Nodes), len(comp.Nodes))
	}
	root := c.RootTrack()
	if root == nil || !slices.Equal(root.ChildIDs, comp.RootTrack().ChildIDs) {
		t.Errorf("root children differ")
	}
	tr, ok := c.Track(track.ID)
	if !ok || tr.Opacity != 0.5 || tr.Visible || tr.BlendMode != BlendScreen {
		t.Errorf("track = %+v", tr)
	}
	cl, ok := c.Clip(clip.ID)
	if !ok {
		t.Fatal("clip missing")
	}
	if cl.Kind != ClipText || cl.OutFrame != 48 {
		t.Errorf("clip = %+v", cl)
	}
	if names := cl.Properties.Names(); !slices.Equal(names, []string{"text", "position", "rotation"}) {
		t.Errorf("property order = %v", names)
	}
	kp, _ := cl.Properties.Get("position")
	if k, ok := kp.(*KeyframeProperty); !ok || k.Len() != 2 || k.Keyframes[0].Easing.Kind != EaseOutCubic {
		t.Errorf("position = %#v", kp)
	}
	ex, _ := cl.Properties.Get("rotation")
	if e, ok := ex.(*ExpressionProperty); !ok || e.Source != "return t * 90" {
		t.Errorf("rotation = %#v", ex)
	}
	if len(cl.Styles) != 1 || cl.Styles[0].Type != "style.fill" {
		t.Errorf("styles = %+v", cl.Styles)
	}
	if len(c.Connections) != 1 || c.Connections[0] != comp.Connections[0] {
		t.Errorf("connections = %+v", c.Connections)
	}
}

func TestProjectRoundTripYAML(t *testing.T) {
	p, comp, track, clip := persistProject(t)
	var buf bytes.Buffer
	if err := EncodeProject(&buf, p, FormatYAML); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeProject(&buf, FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	checkRoundTrip(t, got, comp, track, clip)
}

func TestProjectRoundTripJSON(t *testing.T) {
	p, comp, track, clip := persistProject(t)
	var buf bytes.Buffer
	if err := EncodeProject(&buf, p, FormatJSON); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeProject(&buf, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	checkRoundTrip(t, got, comp, track, clip)
}

func TestProjectEncodingIsStable(t *testing.T) {
	p, _, _, _ := persistProject(t)
	var a, b bytes.Buffer
	if err := EncodeProject(&a, p, FormatYAML); err != nil {
		t.Fatal(err)
	}
	if err := EncodeProject(&b, p, FormatYAML); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Error("two encodings of the same project differ")
	}
}

func TestSaveLoadProject(t *testing.T) {
	p, comp, track, clip := persistProject(t)
	for _, name := range []string{"project.yaml", "project.json"} {
		path := filepath.Join(t.TempDir(), name)
		if err := SaveProject(path, p); err != nil {
			t.Fatal(err)
		}
		got, err := LoadProject(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		checkRoundTrip(t, got, comp, track, clip)
	}
	if _, err := LoadProject(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
}

func TestFormatForPath(t *testing.T) {
	if FormatForPath("a/b.JSON") != FormatJSON || FormatForPath("a.yaml") != FormatYAML || FormatForPath("a") != FormatYAML {
		t.Error("format detection wrong")
	}
}

const minimalProjectYAML = `name: minimal
compositions:
  - id: 7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1a01
    name: main
    width: 320
    height: 240
    fps: 30
    duration: 1
    background_color: "#000000ff"
    root_track_id: 7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1a02
    nodes:
      - track:
          id: 7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1a02
          name: root
`

func TestTrackDefaultsWhenOmitted(t *testing.T) {
	p, err := DecodeProject(strings.NewReader(minimalProjectYAML), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	root := p.Compositions[0].RootTrack()
	if root.Opacity != 1 || !root.Visible {
		t.Errorf("root = %+v, want opacity 1 and visible", root)
	}

	js := `{"id":"7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1a02","name":"t"}`
	var tr Track
	if err := tr.UnmarshalJSON([]byte(js)); err != nil {
		t.Fatal(err)
	}
	if tr.Opacity != 1 || !tr.Visible {
		t.Errorf("json track = %+v, want opacity 1 and visible", tr)
	}
}

func TestDecodeRejectsBrokenCompositions(t *testing.T) {
	missingRoot := strings.Replace(minimalProjectYAML,
		"root_track_id: 7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1a02",
		"root_track_id: 7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1aff", 1)
	if _, err := DecodeProject(strings.NewReader(missingRoot), FormatYAML); !errors.Is(err, ErrProject) {
		t.Errorf("missing root: err = %v, want ErrProject", err)
	}

	ambiguous := minimalProjectYAML + `        clip:
          id: 7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1a03
          type: text
          in_frame: 0
          out_frame: 10
          source_begin_frame: 0
          fps: 30
          properties: {}
`
	if _, err := DecodeProject(strings.NewReader(ambiguous), FormatYAML); !errors.Is(err, ErrProject) {
		t.Errorf("ambiguous node: err = %v, want ErrProject", err)
	}

	duplicate := minimalProjectYAML + `      - track:
          id: 7f1c9c1e-4c1e-4d5a-9a7e-2b7d9e0c1a02
          name: again
`
	if _, err := DecodeProject(strings.NewReader(duplicate), FormatYAML); !errors.Is(err, ErrProject) {
		t.Errorf("duplicate id: err = %v, want ErrProject", err)
	}
}
