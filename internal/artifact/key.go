// Package artifact reads and writes the per-worker intermediate files: a
// binary frequency table and the dictionaries its keys refer to.
package artifact

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrCorrupt is returned when an artifact is truncated, has the wrong
	// header or fails its checksum.
	ErrCorrupt = errors.New("corrupt artifact")

	// ErrKeyCapacity is returned when a worker's URL and date IDs cannot
	// share a 32-bit packed key.
	ErrKeyCapacity = errors.New("url and date ids do not fit a 32-bit key")
)

// Key identifies a (url, date) pair by the IDs of its two halves.
type Key uint64

func MakeKey(url, date uint32) Key {
	return Key(uint64(url)<<32 | uint64(date))
}

func (k Key) URL() uint32  { return uint32(k >> 32) }
func (k Key) Date() uint32 { return uint32(k) }

// DateBits is the narrowest field able to hold the IDs of n dates.
func DateBits(n int) uint8 {
	if n <= 1 {
		return 0
	}
	return uint8(bits.Len32(uint32(n - 1)))
}

// CheckCapacity reports whether urls URL IDs and dates date IDs fit a
// packed key.
func CheckCapacity(urls, dates int) error {
	db := DateBits(dates)
	if urls > 0 && uint64(urls-1) >= uint64(1)<<(32-db) {
		return fmt.Errorf("%w: %d urls with %d dates (%d date bits)", ErrKeyCapacity, urls, dates, db)
	}
	return nil
}

// Pack squeezes k into 32 bits, giving the date the low dateBits bits.
func Pack(k Key, dateBits uint8) (uint32, error) {
	if uint64(k.Date()) >= uint64(1)<<dateBits || uint64(k.URL()) >= uint64(1)<<(32-dateBits) {
		return 0, fmt.Errorf("%w: url %d date %d with %d date bits", ErrKeyCapacity, k.URL(), k.Date(), dateBits)
	}
	return uint32(uint64(k.URL())<<dateBits | uint64(k.Date())), nil
}

// Unpack is the inverse of Pack.
func Unpack(packed uint32, dateBits uint8) Key {
	mask := uint64(1)<<dateBits - 1
	return MakeKey(uint32(uint64(packed)>>dateBits), uint32(uint64(packed)&mask))
}
