package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCandidate = "sqlsynth/candidate/v1"
	DomainRelation  = "sqlsynth/relation/v1"
	DomainRun       = "sqlsynth/run/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CandidateID is the content-addressed identity of a rendered candidate.
// Two trees that render to the same SQL text share an ID.
func CandidateID(sql string) string {
	return hashWithDomain(DomainCandidate, []byte(sql))
}

// RowKey returns the canonical JSON of a row. Keys are used as map keys
// and sort keys when comparing relations.
func RowKey(row []Value) (string, error) {
	b, err := MarshalCanonical(Array(row))
	if err != nil {
		return "", fmt.Errorf("RowKey: %w", err)
	}
	return string(b), nil
}

// RelationDigest hashes a relation's contents under the given comparison
// mode, so that two relations Equal under mode have the same digest.
// Column names do not contribute.
func RelationDigest(r Relation, mode Comparison) (string, error) {
	keys, err := rowKeys(r, mode)
	if err != nil {
		return "", fmt.Errorf("RelationDigest: %w", err)
	}
	arr := make(Array, 0, len(keys)+1)
	arr = append(arr, Int(len(r.Columns)))
	for _, k := range keys {
		arr = append(arr, Text(k))
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("RelationDigest: %w", err)
	}
	return hashWithDomain(DomainRelation, canonical), nil
}

// RunDigest identifies a search configuration: the problem, the target and
// the bounds. It is stored with each run so traces can be grouped.
func RunDigest(problem, targetDigest string, b Bounds) string {
	obj := Object{
		"problem":        Text(problem),
		"target":         Text(targetDigest),
		"max_complexity": Int(b.MaxComplexity),
		"max_depth":      Int(b.MaxDepth),
		"max_emitted":    Int(b.MaxEmitted),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Object holds only Text and Int; encoding cannot fail.
		panic(err)
	}
	return hashWithDomain(DomainRun, canonical)
}

// rowKeys returns the comparable row keys of r: sorted for bag, sorted
// and deduplicated for set, in row order for ordered.
func rowKeys(r Relation, mode Comparison) ([]string, error) {
	keys := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		k, err := RowKey(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		keys[i] = k
	}
	switch mode {
	case CompareOrdered:
	case CompareSet:
		slices.Sort(keys)
		keys = slices.Compact(keys)
	default:
		slices.Sort(keys)
	}
	return keys, nil
}
