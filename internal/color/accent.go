// Package color derives stable accent colors for airports and chart
// categories. Clients tint tabs and badges with them, so the same code
// must map to the same color on every device and after every import.
package color

import "fmt"

// ForAirport returns a hex accent color derived from the airport code.
func ForAirport(code string) string {
	return fromString(code, 0.40, 0.65)
}

// ForCategory returns a hex badge color derived from the category name.
// Slightly darker than airport accents so badge text stays readable.
func ForCategory(name string) string {
	return fromString(name, 0.45, 0.55)
}

func fromString(s string, sat, light float64) string {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	hue := float64(h % 360)

	r, g, b := hslToRGB(hue, sat, light)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// hslToRGB converts HSL (hue 0-360, saturation and lightness 0-1) to
// RGB bytes.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0

	var r1, g1, b1 float64

	if s == 0 {
		r1, g1, b1 = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q

		r1 = hueToRGB(p, q, h+1.0/3.0)
		g1 = hueToRGB(p, q, h)
		b1 = hueToRGB(p, q, h-1.0/3.0)
	}

	r = uint8(r1 * 255)
	g = uint8(g1 * 255)
	b = uint8(b1 * 255)
	return
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
