package utils

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
	nodeErr  error
)

// InitIDs initializes the snowflake node used for workflow ids.
func InitIDs(nodeID int64) error {
	nodeOnce.Do(func() {
		node, nodeErr = snowflake.NewNode(nodeID)
	})
	return nodeErr
}

// NewSequenceID returns a time-ordered int64 id. The node defaults to 1 when
// InitIDs was never called.
func NewSequenceID() int64 {
	_ = InitIDs(1)
	return node.Generate().Int64()
}
