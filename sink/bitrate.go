package sink

import (
	"github.com/xaionaro-go/avfile/types"
)

const DefaultBitRate = 800000

var bitRates = map[types.Geometry]uint64{
	types.Geometry1080p: 20971520,
	types.Geometry720p:  8192000,
	types.GeometrySVGA:  4096000,
	types.GeometryVGA:   1024000,
	types.GeometryCIF:   800000,
	types.GeometryQVGA:  170000,
	types.GeometryQCIF:  128000,
}

// BitRateFor returns the encoder bitrate for the standard geometries and
// DefaultBitRate for the others.
func BitRateFor(g types.Geometry) uint64 {
	if br, ok := bitRates[g]; ok {
		return br
	}
	return DefaultBitRate
}
