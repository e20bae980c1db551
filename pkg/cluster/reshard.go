package cluster

import (
	"fmt"
	"io"
	"sort"

	"github.com/golang/glog"

	"github.com/elcuervo/ruster/pkg/redis"
)

// ReshardOptions settings of a reshard run
type ReshardOptions struct {
	// Timeout applied to each key move, in milliseconds
	Timeout int
	// DBIndex destination database index for moved keys
	DBIndex int
}

// Resharder moves a share of slot ownership from a set of source nodes to one
// target node, driving the two-phase per-slot migration protocol.
type Resharder struct {
	admin redis.AdminInterface
	out   io.Writer
}

// NewResharder builds and returns new Resharder instance
func NewResharder(admin redis.AdminInterface, out io.Writer) *Resharder {
	return &Resharder{
		admin: admin,
		out:   out,
	}
}

// computeShares returns the per-source number of slots to move, proportional
// to each source's stable slot count. Integer truncation toward zero: the sum
// of the shares may fall short of slotCount and the loss is never
// redistributed. Asking for more slots than the sources own drains each
// source completely, never more.
func computeShares(sources redis.Nodes, slotCount, totalSlots int) []int {
	shares := make([]int, len(sources))
	for i, source := range sources {
		share := slotCount * source.TotalSlots() / totalSlots
		if share > source.TotalSlots() {
			share = source.TotalSlots()
		}
		shares[i] = share
	}
	return shares
}

// Reshard moves slotCount slots from the source nodes to the target node.
// Sources are drained largest first; per slot, the target is flagged
// IMPORTING before the source is flagged MIGRATING, keys are drained in
// bounded batches, then the new ownership is broadcast best-effort to the
// whole topology snapshot. Any transfer error aborts the entire run
// immediately, with no rollback of states already flipped.
func (r *Resharder) Reshard(targetAddr string, slotCount int, sourceAddrs []string, opts ReshardOptions) error {
	targetInfos, err := r.admin.GetClusterNodesFrom(targetAddr)
	if err != nil {
		return err
	}
	target := targetInfos.Node
	snapshot := targetInfos.Nodes()

	sources := redis.Nodes{}
	for _, addr := range sourceAddrs {
		infos, err := r.admin.GetClusterNodesFrom(addr)
		if err != nil {
			return err
		}
		sources = append(sources, infos.Node)
	}

	// larger donors are drained first; stable sort keeps input order on ties
	sources = sources.SortByFunc(func(a, b *redis.Node) bool {
		return a.TotalSlots() > b.TotalSlots()
	})

	totalSlots := 0
	for _, source := range sources {
		totalSlots += source.TotalSlots()
	}
	if totalSlots == 0 {
		return &redis.NoSlotsError{Sources: sourceAddrs}
	}

	shares := computeShares(sources, slotCount, totalSlots)
	for i, source := range sources {
		if shares[i] == 0 {
			glog.V(2).Infof("Source %s gets a zero share, nothing to move", source.IPPort())
			continue
		}

		slots := append([]redis.Slot{}, source.Slots...)
		sort.Sort(redis.SlotSlice(slots))
		slots = slots[:shares[i]]

		fmt.Fprintf(r.out, "Moving %d slots from %s to %s\n", len(slots), source.IPPort(), target.IPPort())
		for _, slot := range slots {
			if err := r.moveSlot(source, target, slot, snapshot, opts); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(r.out, "Reshard complete\n")
	return nil
}

// moveSlot migrates a single slot from source to target and broadcasts the
// new ownership to every node of the snapshot
func (r *Resharder) moveSlot(source, target *redis.Node, slot redis.Slot, snapshot redis.Nodes, opts ReshardOptions) error {
	if nb, err := r.admin.CountKeysInSlot(source.IPPort(), slot); err == nil {
		// diagnostic only, never drives control flow
		glog.V(2).Infof("Slot %s on %s holds %d keys", slot, source.IPPort(), nb)
	}

	// the importing state must land on the target before the source starts migrating
	if err := r.admin.SetSlot(target.IPPort(), slot, redis.SlotActionImporting, source.ID); err != nil {
		return err
	}
	if err := r.admin.SetSlot(source.IPPort(), slot, redis.SlotActionMigrating, target.ID); err != nil {
		return err
	}

	moved, err := r.admin.MigrateSlot(source.IPPort(), target, slot, redis.MigrateOptions{
		Batch:   redis.DefaultMigrateBatch,
		Timeout: opts.Timeout,
		DBIndex: opts.DBIndex,
	})
	if err != nil {
		return err
	}
	glog.V(3).Infof("Slot %s drained, %d keys moved", slot, moved)

	// best-effort convergence broadcast: the new owner first, then the old
	// one, then the rest of the snapshot. A node failing to take the update
	// is reported and tolerated.
	for _, node := range orderForConvergence(snapshot, target, source) {
		if err := r.admin.SetSlot(node.IPPort(), slot, redis.SlotActionNode, target.ID); err != nil {
			glog.Warningf("Node %s did not take ownership update of slot %s: %v", node.IPPort(), slot, err)
			fmt.Fprintf(r.out, "warning: node %s did not take ownership update of slot %s\n", node.IPPort(), slot)
		}
	}

	return nil
}

// orderForConvergence returns the snapshot with target first and source
// second, so a crash mid-broadcast can not leave the new owner unaware of its
// own slot
func orderForConvergence(snapshot redis.Nodes, target, source *redis.Node) redis.Nodes {
	ordered := redis.Nodes{target, source}
	for _, node := range snapshot {
		if node.ID == target.ID || node.ID == source.ID {
			continue
		}
		ordered = append(ordered, node)
	}
	return ordered
}
