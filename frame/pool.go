package frame

import (
	"github.com/xaionaro-go/avfile/pool"
)

var planeBuffers = pool.NewBuffers()

func getPlane(size int) *[]byte {
	return planeBuffers.Get(size)
}

func putPlane(buf *[]byte) {
	planeBuffers.Put(buf)
}
