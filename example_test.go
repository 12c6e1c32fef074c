package strata_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"testing/fstest"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
)

func pixel(c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, c)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Fatal(err)
	}
	return buf.Bytes()
}

// ExampleNew_memory runs a batch entirely in memory: layers from an fs.FS,
// rules from a static loader and tokens kept in an in-memory store.
func ExampleNew_memory() {
	layers := fstest.MapFS{
		"Background/Sky Blue.png": {Data: pixel(color.NRGBA{B: 255, A: 255})},
		"Hat/crown.png":           {Data: pixel(color.NRGBA{R: 255, G: 215, A: 255})},
	}
	store := memory.NewStore()

	eng, err := strata.New("",
		strata.WithLayersFS(layers),
		strata.WithLayerOrder("Hat", "Background"),
		strata.WithLoader(memory.NewLoader(&domain.RuleSet{})),
		strata.WithStore(store),
		strata.WithCollection("Example", ""),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	sess, err := eng.Start(ctx, domain.BatchRequest{Count: 1, OutWidth: 64, OutHeight: 64})
	if err != nil {
		log.Fatal(err)
	}
	progress, err := sess.Wait(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(progress.Status, progress.Done)

	md, err := eng.Token(ctx, 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(md.Name)
	for _, a := range md.Attributes {
		fmt.Printf("%s: %s\n", a.TraitType, a.Value)
	}
	// Output:
	// completed 1
	// Example #1
	// Background: Sky Blue
	// Hat: Crown
}
