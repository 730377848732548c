package types

import (
	"fmt"
)

// Geometry is the pixel dimensions of a picture.
type Geometry struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

var (
	GeometryQCIF  = Geometry{Width: 176, Height: 144}
	GeometryQVGA  = Geometry{Width: 320, Height: 240}
	GeometryCIF   = Geometry{Width: 352, Height: 288}
	GeometryVGA   = Geometry{Width: 640, Height: 480}
	GeometrySVGA  = Geometry{Width: 800, Height: 600}
	Geometry720p  = Geometry{Width: 1280, Height: 720}
	Geometry1080p = Geometry{Width: 1920, Height: 1080}
)

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

func (g Geometry) Equal(other Geometry) bool {
	return g.Width == other.Width && g.Height == other.Height
}

func (g Geometry) IsZero() bool {
	return g.Width == 0 || g.Height == 0
}

func (g *Geometry) Parse(s string) error {
	var r Geometry
	_, err := fmt.Sscanf(s, "%dx%d", &r.Width, &r.Height)
	if err != nil {
		return fmt.Errorf("unable to parse geometry '%s': %w", s, err)
	}
	if r.IsZero() {
		return fmt.Errorf("geometry '%s' has a zero dimension", s)
	}
	*g = r
	return nil
}

func ParseGeometry(s string) (Geometry, error) {
	var g Geometry
	err := g.Parse(s)
	return g, err
}

// Set implements pflag.Value.
func (g *Geometry) Set(s string) error {
	return g.Parse(s)
}

// Type implements pflag.Value.
func (g *Geometry) Type() string {
	return "geometry"
}

func (g Geometry) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Geometry) UnmarshalText(b []byte) error {
	return g.Parse(string(b))
}
