package redis

import (
	"fmt"
	"net"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

const (
	// ClusterInfosUnset status of the cluster info: no data set
	ClusterInfosUnset = "Unset"
	// ClusterInfosPartial status of the cluster info: data is not complete (some nodes didn't respond)
	ClusterInfosPartial = "Partial"
	// ClusterInfosInconsistent status of the cluster info: nodesinfos is not consistent between nodes
	ClusterInfosInconsistent = "Inconsistent"
	// ClusterInfosConsistent status of the cluster info: nodeinfos is complete and consistent between nodes
	ClusterInfosConsistent = "Consistent"
)

// NodeInfos representation of a node info, i.e. data returned by the CLUSTER NODES redis command
// Node is the information of the targeted node
// Friends are the view of the other nodes from the targeted node
type NodeInfos struct {
	Node    *Node
	Friends Nodes
}

// ClusterInfos represents the node infos for all nodes of the cluster
type ClusterInfos struct {
	Infos  map[string]*NodeInfos
	Status string
}

// NewNodeInfos returns an instance of NodeInfo
func NewNodeInfos() *NodeInfos {
	return &NodeInfos{
		Node:    NewDefaultNode(),
		Friends: Nodes{},
	}
}

// NewClusterInfos returns an instance of ClusterInfos
func NewClusterInfos() *ClusterInfos {
	return &ClusterInfos{
		Infos:  make(map[string]*NodeInfos),
		Status: ClusterInfosUnset,
	}
}

// Nodes returns the full sequence of nodes of the snapshot, the queried node
// first. The order of the friends is whatever the server returned.
func (i *NodeInfos) Nodes() Nodes {
	return append(Nodes{i.Node}, i.Friends...)
}

// DecodeNode decode a single CLUSTER NODES row into a Node. addr is the
// address of the node we are connected to, used to fill in the empty self IP
// some servers report on their own row. The slot classification (stable,
// migrating, importing) is computed here, once, at construction.
func DecodeNode(line string, addr string) (*Node, error) {
	values := strings.Fields(line)
	if len(values) < 8 {
		return nil, &ParseError{Line: line, Reason: fmt.Sprintf("expected at least 8 fields, got %d", len(values))}
	}

	node := NewDefaultNode()

	node.ID = values[0]
	//remove trailing port for cluster internal protocol
	ipPort := strings.Split(values[1], "@")
	if ip, port, err := net.SplitHostPort(ipPort[0]); err == nil {
		node.IP = ip
		node.Port = port
		if ip == "" {
			// ip of the node we are connecting to is sometime empty
			node.IP, _, _ = net.SplitHostPort(addr)
		}
	} else {
		return nil, &ParseError{Line: line, Reason: fmt.Sprintf("cannot split ip:port ('%s'): %v", values[1], err)}
	}
	node.SetRole(values[2])
	node.SetFailureStatus(values[2])
	node.SetReferentMaster(values[3])
	if i, err := strconv.ParseInt(values[4], 10, 64); err == nil {
		node.PingSent = i
	}
	if i, err := strconv.ParseInt(values[5], 10, 64); err == nil {
		node.PongRecv = i
	}
	if i, err := strconv.ParseInt(values[6], 10, 64); err == nil {
		node.ConfigEpoch = i
	}
	node.SetLinkStatus(values[7])

	for _, slot := range values[8:] {
		if s, importing, migrating, err := DecodeSlotRange(slot); err == nil {
			node.Slots = append(node.Slots, s...)
			if importing != nil {
				node.ImportingSlots[importing.SlotID] = importing.FromNodeID
			}
			if migrating != nil {
				node.MigratingSlots[migrating.SlotID] = migrating.ToNodeID
			}
		} else {
			glog.V(2).Infof("Ignoring unparseable slot token '%s' for node %s: %v", slot, node.ID, err)
		}
	}

	// a slot under migration is still listed inside the owner's stable range
	// token; the marker wins so the three sets stay disjoint
	markers := []Slot{}
	for s := range node.MigratingSlots {
		markers = append(markers, s)
	}
	for s := range node.ImportingSlots {
		markers = append(markers, s)
	}
	if len(markers) > 0 {
		node.Slots = RemoveSlots(node.Slots, markers)
	}

	return node, nil
}

// IsMyself returns true when the row carries the myself flag, marking the node
// answering the query
func IsMyself(line string) bool {
	values := strings.Fields(line)
	return len(values) >= 3 && strings.HasPrefix(values[2], "myself")
}

// DecodeNodeInfos decode from the CLUSTER NODES output a full node snapshot.
// addr is the address of the node on which we are connected to request the
// info; its own row (flagged myself) becomes Node, every other row a Friend.
func DecodeNodeInfos(input *string, addr string) (*NodeInfos, error) {
	infos := NewNodeInfos()
	lines := strings.Split(*input, "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			// last line is always empty
			continue
		}
		node, err := DecodeNode(line, addr)
		if err != nil {
			return nil, err
		}

		if IsMyself(line) {
			infos.Node = node
			glog.V(7).Infof("Getting node info for node: '%s'", node)
		} else {
			infos.Friends = append(infos.Friends, node)
			glog.V(7).Infof("Adding node to slice: '%s'", node)
		}
	}

	return infos, nil
}

// ComputeStatus check the ClusterInfos status based on the current data
// the status ClusterInfosPartial is set while building the clusterinfos
// if already set, do nothing
// returns true if consistent
func (c *ClusterInfos) ComputeStatus() bool {
	if c.Status != ClusterInfosUnset {
		return false
	}

	consistencyStatus := false

	consolidatedView := c.GetNodes().SortByFunc(LessByID)
	consolidatedSignature := getConfigSignature(consolidatedView)
	glog.V(7).Infof("Consolidated view:\n%s", consolidatedSignature)
	for addr, nodeinfos := range c.Infos {
		nodesView := append(nodeinfos.Friends, nodeinfos.Node).SortByFunc(LessByID)
		nodeSignature := getConfigSignature(nodesView)
		glog.V(7).Infof("Node view from %s (ID: %s):\n%s", addr, nodeinfos.Node.ID, nodeSignature)
		if !reflect.DeepEqual(consolidatedSignature, nodeSignature) {
			glog.V(2).Infof("Inconsistency from %s: \n%s\nVS\n%s", addr, consolidatedSignature, nodeSignature)
			c.Status = ClusterInfosInconsistent
		}
	}
	if c.Status == ClusterInfosUnset {
		c.Status = ClusterInfosConsistent
		consistencyStatus = true
	}
	return consistencyStatus
}

// GetNodes returns a nodeSlice view of the cluster
// the slice is formed from how each node sees itself
// you should check the Status before using it, to wait for a consistent view
func (c *ClusterInfos) GetNodes() Nodes {
	nodes := Nodes{}
	for _, nodeinfos := range c.Infos {
		nodes = append(nodes, nodeinfos.Node)
	}
	return nodes
}

// ConfigSignature Represents the slots of each node
type ConfigSignature map[string]SlotSlice

// String representation of a ConfigSignature
func (c ConfigSignature) String() string {
	s := "map["
	sc := make([]string, 0, len(c))
	for i := range c {
		sc = append(sc, i)
	}
	sort.Strings(sc)
	for _, i := range sc {
		s += fmt.Sprintf("%s:%s\n", i, c[i])
	}
	s += "]"
	return s
}

// getConfigSignature returns a way to identify a cluster view, to check consistency
func getConfigSignature(nodes Nodes) ConfigSignature {
	signature := ConfigSignature{}
	for _, node := range nodes {
		if node.Role == redisMasterRole {
			signature[node.ID] = SlotSlice(node.Slots)
		}
	}
	return signature
}
