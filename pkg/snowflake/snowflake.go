package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	nodeBits        = 10
	stepBits        = 12
	nodeMax         = -1 ^ (-1 << nodeBits)
	stepMask        = -1 ^ (-1 << stepBits)
	timeShift       = nodeBits + stepBits
	nodeShift       = stepBits
	epoch     int64 = 1704067200000 // 2024-01-01 00:00:00 UTC
)

var ErrNodeRange = errors.New("node number must be between 0 and 1023")

// Node hands out ids that are strictly increasing for the lifetime of the
// node. Ids from different nodes are ordered by millisecond, then node.
type Node struct {
	mu   sync.Mutex
	time int64
	node int64
	step int64
	now  func() time.Time
}

func NewNode(node int64) (*Node, error) {
	if node < 0 || node > nodeMax {
		return nil, ErrNodeRange
	}
	return &Node{node: node, now: time.Now}, nil
}

func (n *Node) Generate() int64 {
	id, _ := n.Next()
	return id
}

// Next returns a new id and the millisecond instant embedded in it.
func (n *Node) Next() (int64, time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now().UnixMilli()

	// Clock moved backwards: keep issuing from the last seen millisecond.
	if now < n.time {
		now = n.time
	}

	if n.time == now {
		n.step = (n.step + 1) & stepMask
		if n.step == 0 {
			for now <= n.time {
				now = n.now().UnixMilli()
				if now < n.time {
					now = n.time
				}
			}
		}
	} else {
		n.step = 0
	}

	n.time = now

	id := ((now - epoch) << timeShift) | (n.node << nodeShift) | n.step
	return id, time.UnixMilli(now).UTC()
}

// timeOf extracts the creation instant of id.
func timeOf(id int64) time.Time {
	return time.UnixMilli((id >> timeShift) + epoch).UTC()
}

// nodeOf extracts the node number that generated id.
func nodeOf(id int64) int64 {
	return (id >> nodeShift) & nodeMax
}
