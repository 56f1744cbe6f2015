package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/starford/compass/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Report returns the digest of a report's summary and sources. Two reports
// with the same digest render identically.
func Report(r *models.Report) string {
	if r == nil {
		return ""
	}
	src := r.Sources
	if src == nil {
		src = models.SourceList{}
	}
	sources, _ := json.Marshal(src)
	buf := make([]byte, 0, len(r.Summary)+1+len(sources))
	buf = append(buf, r.Summary...)
	buf = append(buf, 0)
	buf = append(buf, sources...)
	return Sum(buf)
}
