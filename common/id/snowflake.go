package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init configures the process-wide generator. Each binary passes its own node
// ID (server and scheduler differ) so both can mint IDs concurrently without
// collisions. Later calls are no-ops.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New mints a time-ordered int64 ID. Init must have been called first.
func New() int64 {
	return node.Generate().Int64()
}
