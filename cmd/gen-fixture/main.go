// Command gen-fixture writes a small sample project: placeholder layer art,
// a layer order, a rule document and a strata.yaml.
package main

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/pkg/dsl"
	"gopkg.in/yaml.v3"
)

// shape is a rectangle painted on a transparent canvas.
type shape struct {
	path string
	rect image.Rectangle
	fill color.NRGBA
}

var layers = []shape{
	{"Background/Sky.png", image.Rect(0, 0, 36, 36), color.NRGBA{R: 120, G: 180, B: 240, A: 255}},
	{"Background/Grass.png", image.Rect(0, 0, 36, 36), color.NRGBA{R: 90, G: 170, B: 80, A: 255}},
	{"Background/Dusk.png", image.Rect(0, 0, 36, 36), color.NRGBA{R: 200, G: 110, B: 90, A: 255}},
	{"Body/male/Base.png", image.Rect(10, 12, 26, 36), color.NRGBA{R: 230, G: 190, B: 160, A: 255}},
	{"Body/female/Base.png", image.Rect(11, 12, 25, 36), color.NRGBA{R: 210, G: 160, B: 130, A: 255}},
	{"Hair/male/Short.png", image.Rect(10, 8, 26, 13), color.NRGBA{R: 60, G: 40, B: 20, A: 255}},
	{"Hair/female/Long.png", image.Rect(9, 8, 27, 24), color.NRGBA{R: 150, G: 60, B: 30, A: 255}},
	{"Hair/Bald.png", image.Rect(0, 0, 0, 0), color.NRGBA{}},
	{"Eyes/Round.png", image.Rect(13, 16, 23, 18), color.NRGBA{A: 255}},
	{"Eyes/Sleepy.png", image.Rect(13, 17, 23, 18), color.NRGBA{R: 40, G: 40, B: 40, A: 255}},
	{"Hat/Crown.png", image.Rect(11, 3, 25, 8), color.NRGBA{R: 240, G: 200, B: 40, A: 255}},
	{"Hat/Cap.png", image.Rect(9, 5, 27, 9), color.NRGBA{R: 200, G: 30, B: 30, A: 255}},
}

// Top-most category first.
var layerOrder = []string{"Hat", "Eyes", "Hair", "Body", "Background"}

func main() {
	targetDir := "examples/sample-project"
	if len(os.Args) > 1 {
		targetDir = os.Args[1]
	}

	fmt.Printf("Generating sample project in: %s\n", targetDir)

	// 1. Layer art
	for _, s := range layers {
		check(writePNG(filepath.Join(targetDir, "layers", filepath.FromSlash(s.path)), s))
	}

	// 2. Layer order
	order, err := json.MarshalIndent(layerOrder, "", "  ")
	check(err)
	check(write(filepath.Join(targetDir, "layerorder.json"), order))

	// 3. Rules
	b := dsl.New().DynamicContext(true).ContextFacet("Gender")
	b.Category("Background").Weight("Sky", 60).Weight("Grass", 30).Weight("Dusk", 10)
	b.Category("Hat").Weight("Crown", 5).Weight("Cap", 95)
	b.Category("Hair").WeightIn("male", "Short", 70).WeightIn("female", "Long", 70).Weight("Bald", 30)
	b.Rule("Hat", "Crown").Excludes("Hair", "Bald")
	b.Rule("Eyes", "Sleepy").Requires("Background", "Dusk")
	b.Tag("Mood", "Calm", dsl.Item("Background", "Sky"), dsl.Item("Eyes", "Round"))
	b.Tag("Mood", "Tired", dsl.Item("Background", "Dusk"), dsl.Item("Eyes", "Sleepy"))
	if _, err := b.Build(); err != nil {
		panic(err)
	}
	doc, err := rules.Marshal(b.Document(), rules.FormatYAML)
	check(err)
	check(write(filepath.Join(targetDir, "rules.yaml"), doc))

	// 4. Configuration
	cfg := config.Default()
	cfg.Collection = "Sample"
	cfg.Description = "Placeholder art generated by gen-fixture."
	raw, err := yaml.Marshal(cfg)
	check(err)
	check(write(filepath.Join(targetDir, config.DefaultFile), raw))

	fmt.Println("Done.")
}

func writePNG(path string, s shape) error {
	img := image.NewNRGBA(image.Rect(0, 0, 36, 36))
	for y := s.rect.Min.Y; y < s.rect.Max.Y; y++ {
		for x := s.rect.Min.X; x < s.rect.Max.X; x++ {
			img.SetNRGBA(x, y, s.fill)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
