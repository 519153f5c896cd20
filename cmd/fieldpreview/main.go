// Field preview tool - steps the stencil interactively and shows the field.
//
// Usage: go run ./cmd/fieldpreview [-config run.yaml] [-width 256] [-height 256]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/stencil/config"
	"github.com/pthm-cable/stencil/export"
	"github.com/pthm-cable/stencil/field"
	"github.com/pthm-cable/stencil/stencil"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

// PreviewParams holds the values driven by the sliders.
type PreviewParams struct {
	Center       float32
	Neighbor     float32
	Blocks       int
	ItersPerStep int
	Mode         stencil.BoundaryMode
}

// preview owns the two buffers and the kernel for the current parameters.
type preview struct {
	params PreviewParams
	init   field.InitParams
	kernel *stencil.Kernel
	driver *stencil.Driver
	a, b   *field.Field
}

func newPreview(w, h int, params PreviewParams, init field.InitParams) (*preview, error) {
	a, err := field.New(w, h)
	if err != nil {
		return nil, err
	}
	p := &preview{params: params, init: init, a: a, b: field.MustNew(w, h)}
	if err := p.reset(); err != nil {
		return nil, err
	}
	return p, nil
}

// reset re-initializes the field and rebuilds the kernel from params.
func (p *preview) reset() error {
	p.init.Blocks = p.params.Blocks
	if err := field.Initialize(p.a, p.init); err != nil {
		return err
	}
	if err := p.b.CopyFrom(p.a); err != nil {
		return err
	}
	return p.rebuild()
}

// rebuild swaps in a kernel for the current weights without touching the field.
func (p *preview) rebuild() error {
	if p.kernel != nil {
		p.kernel.Close()
	}
	p.kernel = stencil.NewKernel(
		stencil.WithWeights(p.params.Center, p.params.Neighbor),
		stencil.WithBoundaryMode(p.params.Mode),
	)
	d, err := stencil.NewDriver(p.kernel, p.a, p.b)
	if err != nil {
		return err
	}
	p.driver = d
	return nil
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	width := flag.Int("width", 256, "Field width")
	height := flag.Int("height", 256, "Field height")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()

	defaults := PreviewParams{
		Center:       cfg.Derived.Center32,
		Neighbor:     cfg.Derived.Neighbor32,
		Blocks:       cfg.Init.Blocks,
		ItersPerStep: 1,
		Mode:         cfg.Derived.Boundary,
	}

	p, err := newPreview(*width, *height, defaults, cfg.InitParams())
	if err != nil {
		log.Fatalf("failed to create field: %v", err)
	}
	defer func() { p.kernel.Close() }()

	rl.InitWindow(windowWidth, windowHeight, "Stencil Field Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	// Create texture for rendering
	img := rl.GenImageColor(*width, *height, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	updateTexture(texture, p.a)

	running := false
	iterations := 0
	status := ""

	for !rl.WindowShouldClose() {
		stepped := false
		if running || rl.IsKeyPressed(rl.KeySpace) {
			if err := p.driver.Run(p.params.ItersPerStep); err != nil {
				log.Fatalf("stencil: %v", err)
			}
			iterations += p.params.ItersPerStep
			stepped = true
		}
		if stepped {
			updateTexture(texture, p.a)
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		// Draw preview
		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(*width), Height: float32(*height)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		// Draw stats
		var total float32
		minVal, maxVal := p.a.Data[0], p.a.Data[0]
		for _, v := range p.a.Data {
			total += v
			minVal = min(minVal, v)
			maxVal = max(maxVal, v)
		}

		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Min: %.4g  Max: %.4g  Sum: %.6g", minVal, maxVal, total), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Iterations: %d  Grid: %dx%d", iterations, *width, *height), 15, statsY+20, 16, rl.DarkGray)
		if status != "" {
			rl.DrawText(status, 15, statsY+40, 16, rl.Gray)
		}

		// Control panel
		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Stencil Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		// Centre weight slider
		rl.DrawText("Center weight", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newCenter := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0.0", "1.0",
			p.params.Center, 0, 1,
		)
		rl.DrawText(fmt.Sprintf("%.3f", p.params.Center), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		panelY += 35

		// Neighbour weight slider
		rl.DrawText("Neighbor weight", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newNeighbor := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"0.0", "0.25",
			p.params.Neighbor, 0, 0.25,
		)
		rl.DrawText(fmt.Sprintf("%.3f", p.params.Neighbor), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		panelY += 35

		if newCenter != p.params.Center || newNeighbor != p.params.Neighbor {
			p.params.Center = newCenter
			p.params.Neighbor = newNeighbor
			if err := p.rebuild(); err != nil {
				log.Fatalf("rebuild kernel: %v", err)
			}
		}

		rl.DrawText(fmt.Sprintf("Interior weight sum: %.3f", p.params.Center+4*p.params.Neighbor), int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 30

		// Iterations per step slider
		rl.DrawText("Iterations per frame", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newIters := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"1", "50",
			float32(p.params.ItersPerStep), 1, 50,
		)
		rl.DrawText(fmt.Sprintf("%d", p.params.ItersPerStep), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		p.params.ItersPerStep = max(1, int(newIters))
		panelY += 35

		// Checkerboard blocks slider
		rl.DrawText("Checkerboard blocks (applies on reset)", int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		newBlocks := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			"1", "32",
			float32(p.params.Blocks), 1, 32,
		)
		rl.DrawText(fmt.Sprintf("%d", p.params.Blocks), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		p.params.Blocks = max(1, int(newBlocks))
		panelY += 35

		// Separator
		rl.DrawLine(int32(panelX), int32(panelY), int32(panelX)+int32(panelWidth)-20, int32(panelY), rl.LightGray)
		panelY += 15

		// Buttons
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(running, "Pause", "Run")) {
			running = !running
		}

		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset Field") {
			if err := p.reset(); err != nil {
				log.Fatalf("reset: %v", err)
			}
			iterations = 0
			updateTexture(texture, p.a)
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Mode: "+p.params.Mode.String()) {
			if p.params.Mode == stencil.Exact {
				p.params.Mode = stencil.Reference
			} else {
				p.params.Mode = stencil.Exact
			}
			if err := p.rebuild(); err != nil {
				log.Fatalf("rebuild kernel: %v", err)
			}
		}

		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			p.params = defaults
			if err := p.reset(); err != nil {
				log.Fatalf("reset: %v", err)
			}
			iterations = 0
			updateTexture(texture, p.a)
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 250, Height: 30}, "Save "+cfg.Output.Path) {
			if err := export.WriteFile(cfg.Output.Path, p.a); err != nil {
				status = err.Error()
			} else {
				status = fmt.Sprintf("saved %s after %d iterations", cfg.Output.Path, iterations)
			}
		}
		panelY += 55

		// Output YAML
		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		for _, line := range yamlLines(p.params) {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		// Instructions
		rl.DrawText("Space steps once, C copies YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)

		if rl.IsKeyPressed(rl.KeyC) {
			text := ""
			for _, line := range yamlLines(p.params) {
				text += line + "\n"
			}
			rl.SetClipboardText(text)
		}

		rl.EndDrawing()
	}
}

func yamlLines(params PreviewParams) []string {
	return []string{
		"kernel:",
		fmt.Sprintf("  center: %.3f", params.Center),
		fmt.Sprintf("  neighbor: %.3f", params.Neighbor),
		fmt.Sprintf("  boundary: %s", params.Mode),
		"init:",
		fmt.Sprintf("  blocks: %d", params.Blocks),
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// updateTexture uploads the field, normalised the same way as the exporter.
func updateTexture(texture rl.Texture2D, f *field.Field) {
	levels := export.Normalize(f)
	pixels := make([]color.RGBA, len(levels))
	for i, l := range levels {
		pixels[i] = ramp(float32(l) / 255)
	}
	rl.UpdateTexture(texture, pixels)
}

// ramp maps [0,1] onto dark blue -> cyan -> yellow -> white.
func ramp(v float32) color.RGBA {
	var r, g, b uint8
	if v < 0.25 {
		t := v / 0.25
		r = uint8(10 + t*30)
		g = uint8(20 + t*60)
		b = uint8(60 + t*100)
	} else if v < 0.5 {
		t := (v - 0.25) / 0.25
		r = uint8(40 + t*20)
		g = uint8(80 + t*120)
		b = uint8(160 + t*40)
	} else if v < 0.75 {
		t := (v - 0.5) / 0.25
		r = uint8(60 + t*140)
		g = uint8(200 - t*40)
		b = uint8(200 - t*150)
	} else {
		t := (v - 0.75) / 0.25
		r = uint8(200 + t*55)
		g = uint8(160 + t*95)
		b = uint8(50 + t*205)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
