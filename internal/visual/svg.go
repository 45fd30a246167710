// Package visual renders networks as SVG documents.
package visual

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"math"
	"strings"

	"golang.org/x/image/colornames"
	"gonum.org/v1/gonum/floats"

	"dnnevo/internal/nn"
)

// Options controls the rendered canvas. Colour fields take SVG colour names
// as listed in golang.org/x/image/colornames.
type Options struct {
	Width      float64
	Height     float64
	Background string
	Neuron     string
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	if o.Background == "" {
		o.Background = "black"
	}
	if o.Neuron == "" {
		o.Neuron = "white"
	}
	return o
}

// RenderSVG draws one column per layer, one circle per neuron and one line
// per connection. Lines are coloured from green (lowest weight) through
// yellow to red (highest weight). The network is only read.
func RenderSVG(w io.Writer, net *nn.Network, opts Options) error {
	if net == nil {
		return fmt.Errorf("network is required")
	}
	opts = opts.withDefaults()
	background, err := namedColor(opts.Background)
	if err != nil {
		return err
	}
	stroke, err := namedColor(opts.Neuron)
	if err != nil {
		return err
	}

	layers := net.Layers()
	weights := net.FlatWeights()
	minWeight, maxWeight := floats.Min(weights), floats.Max(weights)

	maxLayerSize := 0
	for i := range layers {
		if layers[i].Size() > maxLayerSize {
			maxLayerSize = layers[i].Size()
		}
	}
	circle := opts.Height / float64(maxLayerSize*2-1)
	xDis := (opts.Width - circle) / float64(len(layers)-1)
	radius := circle / 2

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n",
		opts.Width, opts.Height, opts.Width, opts.Height)
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", hex(background))

	var circles strings.Builder
	for l := range layers {
		layer := &layers[l]
		yMin := columnTop(opts.Height, circle, layer.Size())
		prevTop := 0.0
		if l > 0 {
			prevTop = columnTop(opts.Height, circle, layers[l-1].Size())
		}

		for n := 0; n < layer.Size(); n++ {
			cx := xDis*float64(l) + radius
			cy := yMin + float64(n)*circle*2 + radius

			for _, c := range layer.Neuron(n).Incoming() {
				from := c.From()
				px := xDis*float64(from.Layer) + radius
				py := prevTop + float64(from.Index)*circle*2 + radius
				fmt.Fprintf(bw, `<line x1="%.3f" y1="%.3f" x2="%.3f" y2="%.3f" stroke="%s"/>`+"\n",
					cx, cy, px, py, hex(weightColor(c.Weight(), minWeight, maxWeight)))
			}
			fmt.Fprintf(&circles, `<circle cx="%.3f" cy="%.3f" r="%.3f" fill="none" stroke="%s"/>`+"\n",
				cx, cy, radius, hex(stroke))
		}
	}
	bw.WriteString(circles.String())
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func columnTop(height, circle float64, size int) float64 {
	return 0.5 * (height - circle*float64(size*2-1))
}

// weightColor maps w onto the green-yellow-red ramp spanned by [min, max].
func weightColor(w, min, max float64) color.RGBA {
	p := 0.5
	if max > min {
		p = (w - min) / (max - min)
	}
	if math.IsNaN(p) {
		p = 0.5
	}
	p = math.Max(0, math.Min(1, p))

	c := color.RGBA{A: 0xff}
	if p > 0.5 {
		c.R = 0xff
		c.G = uint8(0xff * (2.0 - 2.0*p))
	} else {
		c.R = uint8(0xff * 2.0 * p)
		c.G = 0xff
	}
	return c
}

func namedColor(name string) (color.RGBA, error) {
	c, ok := colornames.Map[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown colour name: %s", name)
	}
	return c, nil
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
