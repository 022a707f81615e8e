package cmn

import (
	"crypto/md5"
	"encoding/hex"
	"hash"

	"github.com/OneOfOne/xxhash"
)

// HashSet accumulates the two hash algorithms writers update in lock-step:
// MD5 (always available) and XXH128 (optional; modeled here by
// OneOfOne/xxhash's 64-bit XXH64, the closest pack-provided XXH family
// member — see DESIGN.md).
type HashSet struct {
	md5    hash.Hash
	xxh    hash.Hash64
	useMD5 bool
	useXXH bool
}

func NewHashSet(useMD5, useXXH bool) *HashSet {
	hs := &HashSet{useMD5: useMD5, useXXH: useXXH}
	if useMD5 {
		hs.md5 = md5.New()
	}
	if useXXH {
		hs.xxh = xxhash.New64()
	}
	return hs
}

func (hs *HashSet) Write(p []byte) {
	if hs.md5 != nil {
		hs.md5.Write(p)
	}
	if hs.xxh != nil {
		hs.xxh.Write(p)
	}
}

// Finalize returns the hex-encoded digests, empty string when an algorithm
// is disabled, so a disabled algorithm is simply skipped on verification.
func (hs *HashSet) Finalize() (md5hex, xxhhex string) {
	if hs.md5 != nil {
		md5hex = hex.EncodeToString(hs.md5.Sum(nil))
	}
	if hs.xxh != nil {
		xxhhex = hex.EncodeToString(hs.xxh.Sum(nil))
	}
	return
}

// VerifyMD5 and VerifyXXH tolerate an empty stored digest (extent created
// before the algorithm was enabled): absence means "skip", not "fail".
func VerifyMD5(stored string, data []byte) bool {
	if stored == "" {
		return true
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]) == stored
}

func VerifyXXH(stored string, data []byte) bool {
	if stored == "" {
		return true
	}
	h := xxhash.New64()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)) == stored
}
