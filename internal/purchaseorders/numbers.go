package purchaseorders

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

const numberPrefix = "PO-"

// NumberGenerator hands out human-facing purchase order numbers.
type NumberGenerator interface {
	Next() string
}

type snowflakeNumbers struct {
	node *snowflake.Node
}

// NewNumberGenerator returns a generator producing PO-<snowflake id> numbers.
// Every process issuing numbers concurrently needs its own node id.
func NewNumberGenerator(nodeID int64) (NumberGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	return &snowflakeNumbers{node: node}, nil
}

func (g *snowflakeNumbers) Next() string {
	return numberPrefix + g.node.Generate().String()
}
