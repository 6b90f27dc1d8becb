// Package eventstore provides deterministic hashing and content-addressed
// dedup keys for chain events before they are persisted via
// database.EventRepository (spec §3 "Event record").
package eventstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalizeJSON takes arbitrary JSON bytes and returns a canonical
// encoding with deterministic key order; arrays retain their original
// order. This is a simplified RFC8785-like approach, sufficient for
// content hashing (not for exact byte-for-byte interop with other RFC8785
// implementations).
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// MarshalCanonical marshals v to JSON and then canonicalizes key order.
func MarshalCanonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// ContentHash returns the hex-encoded SHA-256 digest of v's canonical JSON
// encoding. Two logically-identical event payloads (same fields, any key
// order) always produce the same ContentHash. DedupKey folds it into its
// key; EventRepository.Create uses neither and stores each event under a
// fresh UUID event_id.
func ContentHash(v interface{}) (string, error) {
	canon, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("eventstore: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// DedupKey builds a hex SHA-256 key from a (chain_id, block_number,
// transaction_hash, log_index) tuple and the event_data payload hash,
// so a reorg that replays the same log with a different payload (a
// hashing divergence per spec §4.1 "after rebuild the root MUST equal the
// on-chain root") still produces a distinct key instead of being silently
// swallowed by a naive (block_number, log_index) dedup.
func DedupKey(chainID int64, blockNumber uint64, txHash string, logIndex uint, payload interface{}) (string, error) {
	payloadHash, err := ContentHash(payload)
	if err != nil {
		return "", err
	}
	raw := fmt.Sprintf("%d:%d:%s:%d:%s", chainID, blockNumber, txHash, logIndex, payloadHash)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:]), nil
}
