package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"math"

	"valuation/internal/appraisal"
	"valuation/internal/types"
)

// DatasetHash returns a hex SHA-256 digest of the target and the candidate
// records in order. Float fields are hashed by their bit patterns so that NaN
// coordinates hash consistently.
func DatasetHash(target types.Record, records []types.Record) string {
	h := sha256.New()
	writeRecord(h, target)
	writeUint(h, uint64(len(records)))
	for _, r := range records {
		writeRecord(h, r)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Key combines a dataset hash and parameters into a cache key.
func Key(datasetHash string, p appraisal.Params) string {
	h := sha256.New()
	h.Write([]byte(datasetHash))
	for _, v := range []float64{p.MaxDistanceKm, p.MinArea, p.MaxArea, p.Power} {
		writeFloat(h, v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeRecord(h hash.Hash, r types.Record) {
	writeString(h, r.Identifier)
	for _, v := range []float64{r.Latitude, r.Longitude, r.TotalArea, r.Price, r.UnitPrice} {
		writeFloat(h, v)
	}
	writeString(h, r.Zone)
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeFloat(h hash.Hash, v float64) {
	if math.IsNaN(v) {
		v = math.NaN()
	}
	writeUint(h, math.Float64bits(v))
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func paramsJSON(p appraisal.Params) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	return string(b), nil
}
