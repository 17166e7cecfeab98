package wsnet

import (
	"encoding/binary"
	"fmt"
	"math"
)

// A frame is [source int32][tag int32][n int32][n x float64], little endian
const headerSize = 12

func encodeFrame(source, tag int, data []float64) []byte {
	buf := make([]byte, headerSize+8*len(data))
	binary.LittleEndian.PutUint32(buf[0:], uint32(int32(source)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(int32(tag)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(int32(len(data))))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[headerSize+8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeFrame(buf []byte) (source, tag int, data []float64, err error) {
	if len(buf) < headerSize {
		return 0, 0, nil, fmt.Errorf("frame of %d bytes is shorter than its header", len(buf))
	}
	source = int(int32(binary.LittleEndian.Uint32(buf[0:])))
	tag = int(int32(binary.LittleEndian.Uint32(buf[4:])))
	n := int(int32(binary.LittleEndian.Uint32(buf[8:])))
	if n < 0 || len(buf) != headerSize+8*n {
		return 0, 0, nil, fmt.Errorf("frame declares %d values but carries %d bytes of payload",
			n, len(buf)-headerSize)
	}
	data = make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[headerSize+8*i:]))
	}
	return source, tag, data, nil
}
