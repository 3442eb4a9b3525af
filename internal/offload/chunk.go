package offload

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
)

const chunkIDPrefix = "chunk_"

// Chunk is one fixed-size slice of the tokenized prompt. The ordinal
// embedded in the ID, not arrival order, determines reassembly order.
type Chunk struct {
	ID   string            `json:"id"`
	Data []float32         `json:"data"`
	Meta map[string]string `json:"metadata,omitempty"`
}

// PartialResult is a peer's transformed payload for one chunk, plus a digest
// of that payload computed by the peer.
type PartialResult struct {
	ChunkID string    `json:"chunk_id"`
	Data    []float32 `json:"data"`
	Hash    string    `json:"hash"`
}

// FullResult is the ordered reassembly of all partial results and the text
// derived from the merged payload.
type FullResult struct {
	Result   string
	Partials []PartialResult
}

// Tokenize converts a prompt into a numeric token representation. This is a
// placeholder vocabulary: each whitespace-separated token is folded through
// FNV-1a. Real token ids would come from the engine's tokenizer.
func Tokenize(prompt string) []float32 {
	fields := strings.Fields(prompt)
	tokens := make([]float32, len(fields))
	for i, f := range fields {
		h := fnv.New32a()
		h.Write([]byte(f))
		tokens[i] = float32(h.Sum32() % 65536)
	}
	return tokens
}

// SplitTokens divides tokens into chunks of at most size elements. Chunk ids
// carry the ordinal position for later reassembly.
func SplitTokens(tokens []float32, size int) []Chunk {
	if size <= 0 {
		size = 1
	}
	var chunks []Chunk
	for i := 0; i*size < len(tokens); i++ {
		end := min((i+1)*size, len(tokens))
		data := make([]float32, end-i*size)
		copy(data, tokens[i*size:end])
		chunks = append(chunks, Chunk{
			ID:   fmt.Sprintf("%s%d", chunkIDPrefix, i),
			Data: data,
			Meta: map[string]string{"index": strconv.Itoa(i)},
		})
	}
	return chunks
}

// ReverseTransform is the placeholder per-chunk transform: it returns the
// payload reversed. It stands in for whatever computation a peer would
// perform on a chunk and carries no inference semantics.
func ReverseTransform(data []float32) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[len(data)-1-i] = v
	}
	return out
}

// PayloadDigest returns the lowercase hex SHA-256 of the payload, hashing
// each value's little-endian 4-byte encoding. Both sides of the wire must
// agree on this encoding for verification to be meaningful.
func PayloadDigest(data []float32) string {
	h := sha256.New()
	var buf [4]byte
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// chunkOrdinal parses the ordinal position out of a chunk id.
func chunkOrdinal(id string) (int, error) {
	rest, ok := strings.CutPrefix(id, chunkIDPrefix)
	if !ok {
		return 0, fmt.Errorf("chunk id %q: missing %q prefix", id, chunkIDPrefix)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("chunk id %q: bad ordinal", id)
	}
	return n, nil
}

// MergeResults reassembles partials in ordinal order, never arrival order,
// and derives the text result from the merged payload. An unparseable chunk
// id is a protocol error.
func MergeResults(partials []PartialResult) (FullResult, error) {
	type keyed struct {
		ord     int
		partial PartialResult
	}
	ordered := make([]keyed, 0, len(partials))
	for _, p := range partials {
		ord, err := chunkOrdinal(p.ChunkID)
		if err != nil {
			return FullResult{}, newError(KindProtocol, "merge: %v", err)
		}
		ordered = append(ordered, keyed{ord: ord, partial: p})
	}

	// Insertion sort by ordinal; chunk counts are small.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].ord < ordered[j-1].ord; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	var merged []float32
	sorted := make([]PartialResult, len(ordered))
	for i, k := range ordered {
		sorted[i] = k.partial
		merged = append(merged, k.partial.Data...)
	}

	parts := make([]string, len(merged))
	for i, v := range merged {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}

	return FullResult{
		Result:   strings.Join(parts, " "),
		Partials: sorted,
	}, nil
}

// Verify recomputes every partial's digest over its carried payload. A
// single mismatch invalidates the entire result.
func Verify(full FullResult) bool {
	for _, p := range full.Partials {
		if PayloadDigest(p.Data) != p.Hash {
			return false
		}
	}
	return true
}
