package ipfs

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"
)

// Multihash prefix for sha2-256: function code 0x12, digest length 0x20.
const (
	mhSHA256    = 0x12
	mhDigestLen = 0x20
)

// URIPrefix is the scheme under which published bundles are addressed.
const URIPrefix = "ipfs://"

// ContentID computes the CIDv0 of a raw block: the base58btc encoding of
// its sha2-256 multihash. Blocks are uploaded with format=v0, so this
// matches the identifier the node assigns and lets callers verify an
// upload without trusting the node.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	mh := make([]byte, 2, 2+mhDigestLen)
	mh[0] = mhSHA256
	mh[1] = mhDigestLen
	mh = append(mh, sum[:]...)
	return base58.Encode(mh)
}

// URI renders a CID as an ipfs:// URI.
func URI(cid string) string {
	return URIPrefix + cid
}

// CIDFromURI strips the ipfs:// scheme. Bare CIDs pass through unchanged.
func CIDFromURI(uri string) string {
	return strings.TrimPrefix(uri, URIPrefix)
}
