package id

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// NewNode builds the process-wide snowflake node. SNOWFLAKE_NODE_ID
// distinguishes replicas; a single-node deployment can leave it unset.
func NewNode() (*snowflake.Node, error) {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}

var Module = fx.Module("id",
	fx.Provide(NewNode),
)
