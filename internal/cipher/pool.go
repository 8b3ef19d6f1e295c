package cipher

import "sync"

// scratch buffer pooling for cipher transforms, avoiding per-operation
// allocation on the hot AEAD path.
var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 64*1024)
		return &b
	},
}

func getBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// putBuffer zeroizes before returning the buffer to the pool — scratch
// buffers may have held plaintext or key material.
func putBuffer(b *[]byte) {
	buf := (*b)[:cap(*b)]
	for i := range buf {
		buf[i] = 0
	}
	*b = buf[:0]
	bufferPool.Put(b)
}
