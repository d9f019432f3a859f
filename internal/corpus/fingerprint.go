package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"iacrag/internal/domain"
)

// Fingerprint identifies a corpus snapshot together with the parameters that
// shape its index. Document order does not matter.
func Fingerprint(docs []domain.Document, chunkSize, overlap int, embedder string) string {
	pairs := make([]string, len(docs))
	for i, d := range docs {
		checksum := d.Checksum
		if checksum == "" {
			checksum = domain.Checksum(d.Content)
		}
		pairs[i] = d.Source + "\x00" + checksum
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	fmt.Fprintf(h, "chunk_size=%d\noverlap=%d\nembedder=%s\n", chunkSize, overlap, embedder)
	return hex.EncodeToString(h.Sum(nil))
}
