package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// idAlphabet is used for resource identifiers and names.
const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// idLength is the random part length of generated identifiers.
const idLength = 10

// Resource returns a new resource identifier with the given prefix. A
// "m2m:xxx" type tag may be passed directly; the "m2m:" part is stripped.
// The random part never contains the substring "fopt", which is reserved
// for fan-out point resource names.
func Resource(prefix string) string {
	if i := strings.IndexByte(prefix, ':'); i >= 0 {
		prefix = prefix[i+1:]
	}
	for {
		r := random(idLength)
		if !strings.Contains(r, "fopt") {
			return prefix + r
		}
	}
}

// Name returns a new resource name of the form "<prefix>_<random>".
func Name(prefix string) string {
	if i := strings.IndexByte(prefix, ':'); i >= 0 {
		prefix = prefix[i+1:]
	}
	if prefix == "" {
		prefix = "un"
	}
	return prefix + "_" + random(idLength)
}

// AE returns a new AE-ID stem. The "S" prefix marks an SP-assigned ID.
func AE() string {
	return "S" + random(idLength)
}

// Request returns a new request identifier.
func Request() string {
	return uuid.NewString()
}

func random(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	out := make([]byte, n)
	for i, c := range b {
		out[i] = idAlphabet[int(c)%len(idAlphabet)]
	}
	return string(out)
}

// --- Sortable IDs ---
// Content instances get lexicographically time-sortable identifiers so that
// "latest"/"oldest" resolution can fall back to ID order when two instances
// share a creation timestamp.

// sortableEncoding uses Crockford's Base32 (excludes I, L, O, U).
const sortableEncoding = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	sortableMu      sync.Mutex
	sortableLastMs  int64
	sortableCounter uint16
)

// Sortable returns a 26-character, lexicographically time-sortable
// identifier (ULID layout: 10 chars timestamp + 16 chars randomness).
func Sortable() string {
	sortableMu.Lock()
	defer sortableMu.Unlock()

	now := time.Now().UnixMilli()
	if now == sortableLastMs {
		sortableCounter++
		if sortableCounter == 0 {
			for now == sortableLastMs {
				time.Sleep(time.Millisecond)
				now = time.Now().UnixMilli()
			}
		}
	} else {
		sortableLastMs = now
		sortableCounter = 0
	}
	return encodeSortable(now, sortableCounter)
}

func encodeSortable(ms int64, counter uint16) string {
	out := make([]byte, 26)
	for i := 9; i >= 0; i-- {
		out[i] = sortableEncoding[ms&0x1F]
		ms >>= 5
	}
	// counter occupies the first four random positions
	out[10] = sortableEncoding[(counter>>12)&0x1F]
	out[11] = sortableEncoding[(counter>>8)&0x1F]
	out[12] = sortableEncoding[(counter>>4)&0x1F]
	out[13] = sortableEncoding[counter&0x1F]
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	for i, c := range b {
		out[14+i] = sortableEncoding[int(c)%32]
	}
	return string(out)
}
