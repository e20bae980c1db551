package redis

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

const (
	// DefaultRedisPort define the default redis port
	DefaultRedisPort = "6379"

	// RedisLinkStateConnected redis connection status connected
	RedisLinkStateConnected = "connected"
	// RedisLinkStateDisconnected redis connection status disconnected
	RedisLinkStateDisconnected = "disconnected"

	// NodeStatusPFail Node is in PFAIL state. Not reachable for the node you are contacting, but still logically reachable
	NodeStatusPFail = "fail?"
	// NodeStatusFail Node is in FAIL state. It was not reachable for multiple nodes that promoted the PFAIL state to FAIL
	NodeStatusFail = "fail"
	// NodeStatusHandshake Untrusted node, we are handshaking
	NodeStatusHandshake = "handshake"
	// NodeStatusNoAddr No address known for this node
	NodeStatusNoAddr = "noaddr"
	// NodeStatusNoFlags no flags at all
	NodeStatusNoFlags = "noflags"
)

const (
	redisMasterRole = "master"
	redisSlaveRole  = "slave"
)

// ErrNotFound returned when a node is not found in a node slice
var ErrNotFound = errors.New("node not found")

// Node represent a Redis Cluster node as reported by one CLUSTER NODES row.
// A Node owns at most one client connection; connections are never shared
// between Node values.
type Node struct {
	ID             string
	IP             string
	Port           string
	Role           string
	LinkState      string
	MasterReferent string
	FailStatus     []string
	PingSent       int64
	PongRecv       int64
	ConfigEpoch    int64
	Slots          []Slot
	MigratingSlots map[Slot]string
	ImportingSlots map[Slot]string
}

// NewDefaultNode builds and returns new defaultNode instance
func NewDefaultNode() *Node {
	return &Node{
		Port:           DefaultRedisPort,
		Slots:          []Slot{},
		MigratingSlots: map[Slot]string{},
		ImportingSlots: map[Slot]string{},
	}
}

// NewNode builds and returns new Node instance
func NewNode(id, ip string) *Node {
	node := NewDefaultNode()
	node.ID = id
	node.IP = ip

	return node
}

// String string representation of a Instance
func (n *Node) String() string {
	return fmt.Sprintf("{Redis ID: %s, role: %s, master: %s, link: %s, status: %s, addr: %s, slots: %s, len(migratingSlots): %d, len(importingSlots): %d}",
		n.ID, n.GetRole(), n.MasterReferent, n.LinkState, n.FailStatus, n.IPPort(), SlotSlice(n.Slots), len(n.MigratingSlots), len(n.ImportingSlots))
}

// IPPort returns join Ip Port string
func (n *Node) IPPort() string {
	return net.JoinHostPort(n.IP, n.Port)
}

// GetRole return the Redis Cluster Node GetRole
func (n *Node) GetRole() string {
	switch n.Role {
	case redisMasterRole:
		return "Master"
	case redisSlaveRole:
		return "Slave"
	default:
		if n.MasterReferent != "" {
			return "Slave"
		}
		if len(n.Slots) > 0 {
			return "Master"
		}
	}

	return "None"
}

// TotalSlots return the total number of slot
func (n *Node) TotalSlots() int {
	return len(n.Slots)
}

// SetRole from a flags string list set the Node's role
func (n *Node) SetRole(flags string) error {
	n.Role = "" // reset value before setting the new one
	vals := strings.Split(flags, ",")
	for _, val := range vals {
		switch val {
		case redisMasterRole:
			n.Role = redisMasterRole
		case redisSlaveRole:
			n.Role = redisSlaveRole
		}
	}

	if n.Role == "" {
		return fmt.Errorf("node %s unknown role in flags '%s'", n.ID, flags)
	}

	return nil
}

// SetLinkStatus set the Node link status
func (n *Node) SetLinkStatus(status string) error {
	n.LinkState = "" // reset value before setting the new one
	switch status {
	case RedisLinkStateConnected:
		n.LinkState = RedisLinkStateConnected
	case RedisLinkStateDisconnected:
		n.LinkState = RedisLinkStateDisconnected
	}

	if n.LinkState == "" {
		return fmt.Errorf("node %s unknown link status '%s'", n.ID, status)
	}

	return nil
}

// SetFailureStatus set from inputs flags the possible failure status
func (n *Node) SetFailureStatus(flags string) {
	n.FailStatus = []string{} // reset value before setting the new one
	vals := strings.Split(flags, ",")
	for _, val := range vals {
		switch val {
		case NodeStatusFail:
			n.FailStatus = append(n.FailStatus, NodeStatusFail)
		case NodeStatusPFail:
			n.FailStatus = append(n.FailStatus, NodeStatusPFail)
		case NodeStatusHandshake:
			n.FailStatus = append(n.FailStatus, NodeStatusHandshake)
		case NodeStatusNoAddr:
			n.FailStatus = append(n.FailStatus, NodeStatusNoAddr)
		case NodeStatusNoFlags:
			n.FailStatus = append(n.FailStatus, NodeStatusNoFlags)
		}
	}
}

// SetReferentMaster set the redis node parent referent
func (n *Node) SetReferentMaster(ref string) {
	n.MasterReferent = ""
	if ref == "-" {
		return
	}
	n.MasterReferent = ref
}

// HasStatus returns true if the node has the given fail status
func (n *Node) HasStatus(status string) bool {
	for _, s := range n.FailStatus {
		if s == status {
			return true
		}
	}
	return false
}

// IsReachable returns false when the node reported a broken link,
// a FAIL state or no known address. Such a node cannot be used as a
// discovery or command target.
func (n *Node) IsReachable() bool {
	if n.LinkState == RedisLinkStateDisconnected {
		return false
	}
	if n.HasStatus(NodeStatusFail) || n.HasStatus(NodeStatusNoAddr) {
		return false
	}
	return true
}

// Nodes represent a Node slice
type Nodes []*Node

// String stringer interface
func (ns Nodes) String() string {
	strs := make([]string, 0, len(ns))
	for _, n := range ns {
		strs = append(strs, n.String())
	}
	return "[" + strings.Join(strs, ",") + "]"
}

// SortByFunc returns a new ordered Nodes, sorted by less function
func (ns Nodes) SortByFunc(less func(*Node, *Node) bool) Nodes {
	result := make(Nodes, len(ns))
	copy(result, ns)
	sort.SliceStable(result, func(i, j int) bool {
		return less(result[i], result[j])
	})
	return result
}

// GetNodeByID returns a Redis Node with the specific ID
func (ns Nodes) GetNodeByID(id string) (*Node, error) {
	for _, n := range ns {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, ErrNotFound
}

// GetNodeByIPPort returns a Redis Node with the specific address
func (ns Nodes) GetNodeByIPPort(addr string) (*Node, error) {
	for _, n := range ns {
		if n.IPPort() == addr {
			return n, nil
		}
	}
	return nil, ErrNotFound
}

// FindNodeFunc function for finding a Node. It is use as input for GetNodesByFunc and FilterByFunc
type FindNodeFunc func(node *Node) bool

// GetNodesByFunc returns first node found by the FindNodeFunc
func (ns Nodes) GetNodesByFunc(f FindNodeFunc) (Nodes, error) {
	nodes := ns.FilterByFunc(f)
	if len(nodes) == 0 {
		return nodes, ErrNotFound
	}
	return nodes, nil
}

// FilterByFunc remove a node from a slice by node ID and returns the slice. If not found, fail silently. Value must be unique
func (ns Nodes) FilterByFunc(f FindNodeFunc) Nodes {
	newSlice := Nodes{}
	for _, node := range ns {
		if f(node) {
			newSlice = append(newSlice, node)
		}
	}
	return newSlice
}

// LessByID compare 2 Nodes with there ID
func LessByID(n1, n2 *Node) bool {
	return n1.ID < n2.ID
}

// IsMasterWithSlot anonymous function for searching Master Node with Slots
func IsMasterWithSlot(n *Node) bool {
	return n.Role == redisMasterRole && n.TotalSlots() > 0
}

// IsMasterWithNoSlot anonymous function for searching Master Node with no Slot
func IsMasterWithNoSlot(n *Node) bool {
	return n.Role == redisMasterRole && n.TotalSlots() == 0
}

// IsSlave anonymous function for searching Slave Node
func IsSlave(n *Node) bool {
	return n.Role == redisSlaveRole
}
