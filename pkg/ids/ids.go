// Package ids issues the human-facing order numbers.
package ids

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator hands out time-ordered 63-bit ids unique per node.
type Generator struct {
	node *snowflake.Node
}

// NewGenerator builds a generator for the given node id (0-1023). Every
// running API replica must use a distinct node id.
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Next returns a new id.
func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}
