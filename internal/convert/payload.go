package convert

import (
	"encoding/json"
	"fmt"

	"github.com/sn2notion/sn2notion/internal/blocks"
)

// MarshalDeferredBlocks serializes a marker's deferred subtree for storage
// in internal/diagnostics, so an orchestrate-retry pass can reconstruct
// exactly what still needs appending without re-running Convert. It
// operates on the internal blocks.Block tree rather than notionapi.Block:
// the former is a concrete, plain-data struct; the latter is an interface
// whose concrete types carry unexported fields the jomei/notionapi package
// does not guarantee round-trip through encoding/json.
func MarshalDeferredBlocks(children []*blocks.Block) (string, error) {
	b, err := json.Marshal(children)
	if err != nil {
		return "", fmt.Errorf("marshal deferred blocks: %w", err)
	}
	return string(b), nil
}

// UnmarshalDeferredBlocks reverses MarshalDeferredBlocks. The result is
// ready for WireBlocks, exactly as if it had just come out of WalkDOM.
func UnmarshalDeferredBlocks(payload string) ([]*blocks.Block, error) {
	var children []*blocks.Block
	if err := json.Unmarshal([]byte(payload), &children); err != nil {
		return nil, fmt.Errorf("unmarshal deferred blocks: %w", err)
	}
	return children, nil
}
