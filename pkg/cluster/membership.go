package cluster

import (
	"fmt"
	"io"

	"github.com/golang/glog"

	"github.com/elcuervo/ruster/pkg/redis"
)

// AddNode introduces the node at newAddr to the cluster member at seedAddr.
// Gossip convergence happens asynchronously and is neither awaited nor
// verified.
func AddNode(admin redis.AdminInterface, out io.Writer, seedAddr, newAddr string) error {
	if err := admin.AttachNodeToCluster(seedAddr, newAddr); err != nil {
		return err
	}
	fmt.Fprintf(out, "Added node %s to the cluster known by %s\n", newAddr, seedAddr)
	return nil
}

// RemoveNode instructs every other cluster member to forget the node at
// targetAddr. The caller is responsible for making sure the target owns no
// slots; removing a slot-owning node leaves those slots unreachable. The
// first failed removal instruction aborts, leaving nodes already instructed
// as they are.
func RemoveNode(admin redis.AdminInterface, out io.Writer, targetAddr string) error {
	infos, err := admin.GetClusterNodes()
	if err != nil {
		return err
	}

	nodes := infos.Nodes()
	target, err := nodes.GetNodeByIPPort(targetAddr)
	if err != nil {
		return fmt.Errorf("cannot remove node %s: not found in the cluster", targetAddr)
	}
	if target.TotalSlots() > 0 {
		glog.Warningf("Node %s still owns %d slots, they will become unreachable", targetAddr, target.TotalSlots())
	}

	for _, node := range nodes {
		if node.ID == target.ID {
			continue
		}
		if !node.IsReachable() {
			glog.Warningf("Skipping unreachable node %s for FORGET", node.IPPort())
			continue
		}
		if err := admin.ForgetNode(node.IPPort(), target.ID); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Removed node %s (%s) from the cluster\n", target.ID, targetAddr)
	return nil
}
