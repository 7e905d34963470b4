// Package fingerprint hashes records into stable cache and persistence keys
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// VolatileFields change between exports of the same record and are left out of record fingerprints
var VolatileFields = map[string]bool{
	"_created":             true,
	"_updated":             true,
	"$schema":              true,
	"legacy_creation_date": true,
}

// Generate returns the SHA256 of the canonical JSON of data
func Generate(data any) string {
	return GenerateWithExclusions(data, nil)
}

// Record fingerprints a record without its volatile fields
func Record(record map[string]any) string {
	return GenerateWithExclusions(record, VolatileFields)
}

// GenerateWithExclusions fingerprints data, skipping the dot-notation paths in excludeFields.
// Excluding a path excludes everything below it.
func GenerateWithExclusions(data any, excludeFields map[string]bool) string {
	var b strings.Builder
	canonicalize(&b, data, excludeFields, "")

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

func canonicalize(b *strings.Builder, data any, excludeFields map[string]bool, currentPath string) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		first := true
		for _, k := range keys {
			fieldPath := k
			if currentPath != "" {
				fieldPath = currentPath + "." + k
			}
			if shouldExcludeField(fieldPath, excludeFields) {
				continue
			}

			if !first {
				b.WriteByte(',')
			}
			first = false
			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteByte(':')
			canonicalize(b, v[k], excludeFields, fieldPath)
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			// list elements share the path of the list
			canonicalize(b, item, excludeFields, currentPath)
		}
		b.WriteByte(']')
	default:
		// named map and slice types are not expected here, json sorts their keys anyway
		encoded, _ := json.Marshal(v)
		b.Write(encoded)
	}
}

func shouldExcludeField(fieldPath string, excludeFields map[string]bool) bool {
	if len(excludeFields) == 0 {
		return false
	}
	if excludeFields[fieldPath] {
		return true
	}
	for prefix := range excludeFields {
		if strings.HasPrefix(fieldPath, prefix+".") {
			return true
		}
	}
	return false
}
