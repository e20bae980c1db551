package cluster

import (
	"fmt"
	"io"

	"github.com/elcuervo/ruster/pkg/redis"
)

// Broadcaster fans an arbitrary command out to every node of a topology
// snapshot, best-effort.
type Broadcaster struct {
	admin redis.AdminInterface
	out   io.Writer
}

// NewBroadcaster builds and returns new Broadcaster instance
func NewBroadcaster(admin redis.AdminInterface, out io.Writer) *Broadcaster {
	return &Broadcaster{
		admin: admin,
		out:   out,
	}
}

// Each issues the identical command to every node of the snapshot,
// sequentially, reporting each node's raw reply or error. A per-node failure
// is reported and the loop continues with the next node.
func (b *Broadcaster) Each(nodes redis.Nodes, command string, args ...string) {
	for _, node := range nodes {
		addr := node.IPPort()
		reply, err := b.admin.RunCommand(addr, command, args...)
		if err != nil {
			fmt.Fprintf(b.out, "%s: error: %v\n", addr, err)
			continue
		}
		fmt.Fprintf(b.out, "%s: %s\n", addr, reply)
	}
}
