// Package cluster implements the operator flows of ruster: forming a cluster
// from bare nodes, joining and removing members, broadcasting commands and
// resharding slot ownership.
package cluster

import (
	"fmt"
	"io"
	"math"

	"github.com/golang/glog"

	"github.com/elcuervo/ruster/pkg/redis"
)

// SlotCount total number of slots partitioning the key space
const SlotCount = int(redis.HashMaxSlots) + 1

// Creator drives the initial formation of a cluster from a set of bare nodes
type Creator struct {
	admin redis.AdminInterface
	out   io.Writer
}

// NewCreator builds and returns new Creator instance
func NewCreator(admin redis.AdminInterface, out io.Writer) *Creator {
	return &Creator{
		admin: admin,
		out:   out,
	}
}

// SplitSlots partitions all slots into count contiguous chunks in ascending
// order. Every chunk but the last holds ceil(SlotCount/count) slots; the last
// absorbs the remainder and may be smaller. Pure function of count, so
// repeated calls always produce the same partition.
func SplitSlots(count int) [][]redis.Slot {
	chunkSize := int(math.Ceil(float64(SlotCount) / float64(count)))
	chunks := make([][]redis.Slot, 0, count)
	for first := 0; first < SlotCount; first += chunkSize {
		last := first + chunkSize - 1
		if last > int(redis.HashMaxSlots) {
			last = int(redis.HashMaxSlots)
		}
		chunks = append(chunks, redis.BuildSlotSlice(redis.Slot(first), redis.Slot(last)))
	}
	return chunks
}

// Create forms a new cluster from the given node addresses. All nodes are
// validated before any mutation is attempted: a single violation aborts the
// whole creation with zero side effects. Past that gate there is no rollback;
// a slot-claim or introduction failure aborts immediately and leaves prior
// mutations in place.
func (c *Creator) Create(addrs []string) error {
	if len(addrs) == 0 {
		return fmt.Errorf("no node to create a cluster from")
	}

	for _, addr := range addrs {
		if err := c.validateSeed(addr); err != nil {
			return err
		}
	}

	chunks := SplitSlots(len(addrs))
	for i, addr := range addrs {
		glog.V(2).Infof("Assigning %d slots to %s", len(chunks[i]), addr)
		if err := c.admin.AddSlots(addr, chunks[i]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: slots %s\n", addr, redis.SlotSlice(chunks[i]))
	}

	// every node is introduced to the first one; gossip spreads the
	// membership from there
	seed := addrs[0]
	for _, addr := range addrs {
		if err := c.admin.AttachNodeToCluster(seed, addr); err != nil {
			return err
		}
	}

	fmt.Fprintf(c.out, "Created cluster with %d nodes\n", len(addrs))
	return nil
}

// validateSeed checks the creation preconditions on one node: cluster support
// enabled, not already member of a cluster, empty key space
func (c *Creator) validateSeed(addr string) error {
	enabled, err := c.admin.ClusterEnabled(addr)
	if err != nil {
		return err
	}
	if !enabled {
		return &redis.PreconditionError{Addr: addr, Condition: "cluster support disabled"}
	}

	known, err := c.admin.KnownNodes(addr)
	if err != nil {
		return err
	}
	if known != 1 {
		return &redis.PreconditionError{Addr: addr, Condition: fmt.Sprintf("already knows %d cluster nodes", known)}
	}

	hasKeys, err := c.admin.HasKeys(addr)
	if err != nil {
		return err
	}
	if hasKeys {
		return &redis.PreconditionError{Addr: addr, Condition: "key space is not empty"}
	}

	return nil
}
