package config

import (
	"encoding/json"
	"hash/fnv"
)

// fingerprint hashes the JSON encoding of v. Values that cannot be encoded
// hash to 0, which never matches a committed config.
func fingerprint(v any) uint64 {
	h := fnv.New64a()
	if err := json.NewEncoder(h).Encode(v); err != nil {
		return 0
	}
	return h.Sum64()
}
