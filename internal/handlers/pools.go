// Package handlers provides HTTP request handlers for the altreach API.
package handlers

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog/log"
)

// jsonBufferPool provides reusable byte buffers for JSON decoding.
// This reduces GC pressure by avoiding frequent allocation of buffers.
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		// Pre-allocate 4KB buffer, typical JSON request size
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// getBuffer retrieves a buffer from the pool.
func getBuffer() *bytes.Buffer {
	v := jsonBufferPool.Get()
	buf, ok := v.(*bytes.Buffer)
	if !ok {
		log.Warn().Interface("got_type", v).Msg("Unexpected type from json buffer pool")
		return bytes.NewBuffer(make([]byte, 0, 4096))
	}
	return buf
}

// putBuffer returns a buffer to the pool after resetting it.
func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	jsonBufferPool.Put(buf)
}

// responseBufferPool provides reusable byte buffers for JSON encoding.
var responseBufferPool = sync.Pool{
	New: func() interface{} {
		// Post text plus media URLs fit comfortably in 8KB
		return bytes.NewBuffer(make([]byte, 0, 8192))
	},
}

// getResponseBuffer retrieves a response buffer from the pool.
func getResponseBuffer() *bytes.Buffer {
	v := responseBufferPool.Get()
	buf, ok := v.(*bytes.Buffer)
	if !ok {
		log.Warn().Interface("got_type", v).Msg("Unexpected type from response buffer pool")
		return bytes.NewBuffer(make([]byte, 0, 8192))
	}
	return buf
}

// putResponseBuffer returns a response buffer to the pool after resetting it.
func putResponseBuffer(buf *bytes.Buffer) {
	buf.Reset()
	responseBufferPool.Put(buf)
}
