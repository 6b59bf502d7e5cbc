package app

import (
	"image/color"
	"math"
)

const (
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	JungleTheme    ColorTheme = "jungle"
	ThermalTheme   ColorTheme = "thermal"
	MarineTheme    ColorTheme = "marine"

	defaultColorMapSize = 256
)

type ColorTheme string

var validThemes = map[ColorTheme]struct{}{
	ClassicTheme:   {},
	GrayscaleTheme: {},
	JungleTheme:    {},
	ThermalTheme:   {},
	MarineTheme:    {},
}

// ColorMapper maps values within bounds to a pre-computed color gradient
type ColorMapper struct {
	colorMap      []color.Color
	bounds        ValueBounds
	valuePerIndex float64
}

func NewColorMapper(theme ColorTheme, bounds ValueBounds) *ColorMapper {
	cm := &ColorMapper{colorMap: make([]color.Color, defaultColorMapSize)}

	fn := GetColorTheme(theme)
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(defaultColorMapSize-1))
	}

	cm.bounds = bounds
	cm.valuePerIndex = (bounds.Max - bounds.Min) / float64(defaultColorMapSize-1)
	return cm
}

// GetColor returns the gradient color of v, clamped to the bounds
func (cm *ColorMapper) GetColor(v float64) color.Color {
	v = math.Max(cm.bounds.Min, math.Min(v, cm.bounds.Max))

	index := int((v - cm.bounds.Min) / cm.valuePerIndex)
	if index < 0 {
		index = 0
	} else if index >= len(cm.colorMap) {
		index = len(cm.colorMap) - 1
	}
	return cm.colorMap[index]
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
func (hsv HSV) RGB() color.Color {
	h, s, v := hsv.H, hsv.S, hsv.V

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64

	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

// GetColorTheme returns the gradient of a theme. Every theme stays dark
// enough to read on a white background.
func GetColorTheme(theme ColorTheme) func(float64) color.Color {
	switch theme {
	case GrayscaleTheme: // Light gray -> Black
		return func(v float64) color.Color {
			c := uint8((1 - v) * 0xb0)
			return color.RGBA{R: c, G: c, B: c, A: 0xff}
		}

	case JungleTheme: // Dark Green -> Olive
		return func(v float64) color.Color {
			return HSV{H: 120 - (v * 60), S: 1.0, V: 0.4 + v*0.3}.RGB()
		}

	case ThermalTheme: // Dark red -> Red -> Orange
		return func(v float64) color.Color {
			if v < 0.5 {
				return color.RGBA{R: uint8(0x80 + v*2*0x7f), A: 0xff}
			}
			return color.RGBA{R: 0xff, G: uint8((v - 0.5) * 2 * 0xa0), A: 0xff}
		}

	case MarineTheme: // Deep Blue -> Teal
		return func(v float64) color.Color {
			return HSV{H: 240 - (v * 60), S: 1.0, V: 0.5 + v*0.3}.RGB()
		}

	default: // Blue -> Red
		return func(v float64) color.Color {
			return HSV{H: 240 - (v * 240), S: 0.9 + (v * 0.1), V: 0.85}.RGB()
		}
	}
}
