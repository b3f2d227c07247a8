package id

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// NanoIDGen hands out a fresh random string ID per call.
type NanoIDGen func() string

// 64 symbols, so one random byte maps to one symbol with a mask
// instead of a modulo.
var nanoIDAlphabet = [64]byte{
	'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H',
	'I', 'J', 'K', 'L', 'M', 'N', 'O', 'P',
	'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X',
	'Y', 'Z', 'a', 'b', 'c', 'd', 'e', 'f',
	'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n',
	'o', 'p', 'q', 'r', 's', 't', 'u', 'v',
	'w', 'x', 'y', 'z', '0', '1', '2', '3',
	'4', '5', '6', '7', '8', '9', '-', '_',
}

func cryptoRandUint32() uint32 {
	var b [4]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint32(b[:])
}

// Fisher-Yates over the alphabet once per process, different runs hand
// out IDs over a different symbol order.
func init() {
	for i := len(nanoIDAlphabet) - 1; i > 0; i-- {
		j := cryptoRandUint32() % uint32(i+1)
		nanoIDAlphabet[i], nanoIDAlphabet[j] = nanoIDAlphabet[j], nanoIDAlphabet[i]
	}
}

// ClassicNanoID builds a thread-safe generator of URL-safe random IDs
// of the given length. The generator draws bytes from a pre-filled
// crypto/rand pool and refills the pool on demand.
func ClassicNanoID(length int) (NanoIDGen, error) {
	if length < 2 || length > 255 {
		return nil, errors.New("invalid nano-id length")
	}

	const poolSize = 4096
	pool := make([]byte, poolSize)
	if _, err := crand.Read(pool); err != nil {
		return nil, fmt.Errorf("[nano-id] fill random pool failed, %w", err)
	}
	offset := 0
	buf := make([]byte, length)
	mask := byte(len(nanoIDAlphabet) - 1)

	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()

		if offset+length > poolSize {
			if _, err := crand.Read(pool); err != nil {
				panic(fmt.Errorf("[nano-id] refill random pool failed, %w", err))
			}
			offset = 0
		}
		for i := 0; i < length; i++ {
			buf[i] = nanoIDAlphabet[pool[offset+i]&mask]
		}
		offset += length
		return string(buf)
	}, nil
}
