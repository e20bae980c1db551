package redis

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	radix "github.com/mediocregopher/radix.v2/redis"
)

const (
	// HashMaxSlots higher value of slot
	// as slots start at 0, total number of slots is HashMaxSlots+1
	HashMaxSlots Slot = 16383

	// SlotActionImporting SETSLOT mode marking a slot arriving on the node
	SlotActionImporting = "IMPORTING"
	// SlotActionMigrating SETSLOT mode marking a slot leaving the node
	SlotActionMigrating = "MIGRATING"
	// SlotActionNode SETSLOT mode assigning the slot to its (new) owner
	SlotActionNode = "NODE"

	// DefaultMigrateBatch number of keys fetched per GETKEYSINSLOT call while draining a slot
	DefaultMigrateBatch = 10
)

// AdminInterface redis cluster admin interface
type AdminInterface interface {
	// Connections returns the connection map of all clients
	Connections() AdminConnectionsInterface
	// Close the admin connections
	Close()
	// GetClusterNodes returns the topology snapshot as reported by the first
	// available node, in registration order
	GetClusterNodes() (*NodeInfos, error)
	// GetClusterNodesFrom returns the topology snapshot as reported by the given node
	GetClusterNodesFrom(addr string) (*NodeInfos, error)
	// GetClusterInfos get node infos for all registered nodes
	GetClusterInfos() (*ClusterInfos, error)
	// ClusterEnabled checks whether cluster support is active on the node
	ClusterEnabled(addr string) (bool, error)
	// HasKeys checks whether the node key space holds at least one key
	HasKeys(addr string) (bool, error)
	// KnownNodes returns the number of cluster members the node knows of, itself included
	KnownNodes(addr string) (int, error)
	// AddSlots exec the redis command to add slots to the node
	AddSlots(addr string, slots []Slot) error
	// SetSlot exec the redis command to set the state of a single slot on the node
	SetSlot(addr string, slot Slot, action string, nodeID string) error
	// SetSlots exec the redis command to set slots in a pipeline, provide
	// an empty nodeID if the set slots commands doesn't take a nodeID in parameter
	SetSlots(addr string, action string, slots []Slot, nodeID string) error
	// AttachNodeToCluster introduces the node at addr to the cluster member at seedAddr
	AttachNodeToCluster(seedAddr, addr string) error
	// ForgetNode exec the Redis command to force the node at addr to forget the given node id
	ForgetNode(addr string, id string) error
	// CountKeysInSlot exec the redis command to count the keys in the given slot on the node
	CountKeysInSlot(addr string, slot Slot) (int64, error)
	// GetKeysInSlot exec the redis command to get one batch of keys in the given slot on the node
	GetKeysInSlot(addr string, slot Slot, batch int) ([]string, error)
	// MigrateSlot drains the slot from addr to dest, moving keys one by one in
	// bounded batches. Returns the number of keys moved
	MigrateSlot(addr string, dest *Node, slot Slot, opts MigrateOptions) (int, error)
	// RunCommand issues an arbitrary command on the node and returns the raw formatted reply
	RunCommand(addr string, command string, args ...string) (string, error)
}

// AdminOptions optional options for redis admin
type AdminOptions struct {
	ConnectionTimeout  time.Duration
	ClientName         string
	RenameCommandsFile string
}

// MigrateOptions settings of a slot drain loop
type MigrateOptions struct {
	// Batch maximum number of keys fetched per GETKEYSINSLOT
	Batch int
	// Timeout applied to each MIGRATE, in milliseconds
	Timeout int
	// DBIndex destination database index
	DBIndex int
}

// Admin wraps redis cluster admin logic
type Admin struct {
	cnx AdminConnectionsInterface
}

// NewAdmin returns new AdminInterface instance
// at the same time it connects to all Redis Nodes thanks to the addrs list
func NewAdmin(addrs []string, options *AdminOptions) AdminInterface {
	a := &Admin{}

	// perform initial connections
	a.cnx = NewAdminConnections(addrs, options)

	return a
}

// Connections returns the connection map of all clients
func (a *Admin) Connections() AdminConnectionsInterface {
	return a.cnx
}

// Close used to close all possible resources instantiated by the Admin
func (a *Admin) Close() {
	a.Connections().Reset()
}

// GetClusterNodes returns the topology snapshot as reported by the first
// available node, in registration order
func (a *Admin) GetClusterNodes() (*NodeInfos, error) {
	addr, c, err := a.Connections().GetFirstAvailable()
	if err != nil {
		return nil, err
	}
	return a.getInfos(c, addr)
}

// GetClusterNodesFrom returns the topology snapshot as reported by the given node
func (a *Admin) GetClusterNodesFrom(addr string) (*NodeInfos, error) {
	c, err := a.Connections().Get(addr)
	if err != nil {
		return nil, &ServerError{Addr: addr, Message: "unable to retrieve node info", Cause: err}
	}
	return a.getInfos(c, addr)
}

// GetClusterInfos return the Nodes infos for all registered nodes
func (a *Admin) GetClusterInfos() (*ClusterInfos, error) {
	infos := NewClusterInfos()

	var lastErr error
	for addr, c := range a.Connections().GetAll() {
		nodeinfos, err := a.getInfos(c, addr)
		if err != nil {
			infos.Status = ClusterInfosPartial
			lastErr = err
			continue
		}
		if nodeinfos.Node != nil && nodeinfos.Node.IPPort() == addr {
			infos.Infos[addr] = nodeinfos
		} else {
			glog.Warningf("Bad node info retrieved from %s", addr)
		}
	}

	if len(infos.Infos) == 0 {
		return infos, lastErr
	}
	infos.ComputeStatus()
	return infos, nil
}

// ClusterEnabled checks in the INFO cluster section whether cluster support is active on the node
func (a *Admin) ClusterEnabled(addr string) (bool, error) {
	raw, err := a.getInfoSection(addr, "cluster")
	if err != nil {
		return false, err
	}
	val, found := findInfoField(raw, "cluster_enabled")
	if !found {
		return false, &ServerError{Addr: addr, Message: "no cluster_enabled field in INFO cluster reply"}
	}
	return val == "1", nil
}

// HasKeys checks in the INFO keyspace section whether the node key space holds at least one key
func (a *Admin) HasKeys(addr string) (bool, error) {
	raw, err := a.getInfoSection(addr, "keyspace")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "db") {
			return true, nil
		}
	}
	return false, nil
}

// KnownNodes returns the number of cluster members the node knows of, itself included
func (a *Admin) KnownNodes(addr string) (int, error) {
	c, err := a.Connections().Get(addr)
	if err != nil {
		return 0, &ServerError{Addr: addr, Message: "unable to run command CLUSTER INFO", Cause: err}
	}
	resp := c.Cmd("CLUSTER", "INFO")
	if err := a.Connections().ValidateResp(resp, addr, "unable to run command CLUSTER INFO"); err != nil {
		return 0, err
	}
	raw, err := resp.Str()
	if err != nil {
		return 0, fmt.Errorf("wrong format from CLUSTER INFO: %v", err)
	}
	val, found := findInfoField(raw, "cluster_known_nodes")
	if !found {
		return 0, &ServerError{Addr: addr, Message: "no cluster_known_nodes field in CLUSTER INFO reply"}
	}
	return strconv.Atoi(val)
}

// AttachNodeToCluster introduces the node at addr to the cluster member at
// seedAddr with a MEET. Gossip propagates the membership asynchronously;
// convergence is neither awaited nor verified here.
func (a *Admin) AttachNodeToCluster(seedAddr, addr string) error {
	ip, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	c, err := a.Connections().Get(seedAddr)
	if err != nil {
		return &ServerError{Addr: seedAddr, Message: "cannot attach node to cluster", Cause: err}
	}
	resp := c.Cmd("CLUSTER", "MEET", ip, port)
	if err = a.Connections().ValidateResp(resp, seedAddr, "cannot attach node to cluster"); err != nil {
		return err
	}

	a.Connections().Add(addr)

	glog.Infof("Node %s attached properly", addr)
	return nil
}

// ForgetNode used to force a node to forget a specific node id
func (a *Admin) ForgetNode(addr string, id string) error {
	c, err := a.Connections().Get(addr)
	if err != nil {
		return &ServerError{Addr: addr, Message: "unable to run command FORGET", Cause: err}
	}
	resp := c.Cmd("CLUSTER", "FORGET", id)
	return a.Connections().ValidateResp(resp, addr, "unable to execute FORGET command")
}

// SetSlot use to set a SETSLOT command on a single slot
func (a *Admin) SetSlot(addr string, slot Slot, action string, nodeID string) error {
	return a.SetSlots(addr, action, []Slot{slot}, nodeID)
}

// SetSlots use to set SETSLOT command on several slots
func (a *Admin) SetSlots(addr, action string, slots []Slot, nodeID string) error {
	if len(slots) == 0 {
		return nil
	}
	c, err := a.Connections().Get(addr)
	if err != nil {
		return &ServerError{Addr: addr, Message: "cannot SETSLOT", Cause: err}
	}
	for _, slot := range slots {
		if nodeID == "" {
			c.PipeAppend("CLUSTER", "SETSLOT", slot, action)
		} else {
			c.PipeAppend("CLUSTER", "SETSLOT", slot, action, nodeID)
		}
	}
	if !a.Connections().ValidatePipeResp(c, addr, "cannot SETSLOT") {
		return &ServerError{Addr: addr, Message: fmt.Sprintf("error occured during CLUSTER SETSLOT %s", action)}
	}
	c.PipeClear()

	return nil
}

// AddSlots use to ADDSLOT commands on several slots
func (a *Admin) AddSlots(addr string, slots []Slot) error {
	if len(slots) == 0 {
		return nil
	}
	c, err := a.Connections().Get(addr)
	if err != nil {
		return &ServerError{Addr: addr, Message: "unable to run CLUSTER ADDSLOTS", Cause: err}
	}

	resp := c.Cmd("CLUSTER", "ADDSLOTS", slots)

	return a.Connections().ValidateResp(resp, addr, "unable to run CLUSTER ADDSLOTS")
}

// CountKeysInSlot exec the redis command to count the number of keys in the given slot on a node
func (a *Admin) CountKeysInSlot(addr string, slot Slot) (int64, error) {
	c, err := a.Connections().Get(addr)
	if err != nil {
		return 0, &ServerError{Addr: addr, Message: "unable to run command COUNTKEYSINSLOT", Cause: err}
	}

	resp := c.Cmd("CLUSTER", "COUNTKEYSINSLOT", slot)
	if err := a.Connections().ValidateResp(resp, addr, "unable to run command COUNTKEYSINSLOT"); err != nil {
		return 0, err
	}
	return resp.Int64()
}

// GetKeysInSlot exec the redis command to get one batch of keys in the given slot on the node
func (a *Admin) GetKeysInSlot(addr string, slot Slot, batch int) ([]string, error) {
	keys := []string{}
	c, err := a.Connections().Get(addr)
	if err != nil {
		return keys, &ServerError{Addr: addr, Message: "unable to run command GETKEYSINSLOT", Cause: err}
	}

	resp := c.Cmd("CLUSTER", "GETKEYSINSLOT", slot, strconv.Itoa(batch))
	if err := a.Connections().ValidateResp(resp, addr, "unable to run command GETKEYSINSLOT"); err != nil {
		return keys, err
	}
	keys, err = resp.List()
	if err != nil {
		glog.Errorf("Wrong returned format for CLUSTER GETKEYSINSLOT: %v", err)
		return keys, err
	}
	return keys, nil
}

// MigrateSlot drains the slot from addr to dest. Keys are fetched in batches
// of opts.Batch and moved one by one with MIGRATE; the loop ends when a batch
// comes back empty. Any transfer error aborts immediately, leaving keys
// already moved where they are.
func (a *Admin) MigrateSlot(addr string, dest *Node, slot Slot, opts MigrateOptions) (int, error) {
	keyCount := 0
	c, err := a.Connections().Get(addr)
	if err != nil {
		return keyCount, &ServerError{Addr: addr, Message: "unable to run command MIGRATE", Cause: err}
	}

	batch := opts.Batch
	if batch == 0 {
		batch = DefaultMigrateBatch
	}
	batchStr := strconv.Itoa(batch)
	timeoutStr := strconv.Itoa(opts.Timeout)
	dbStr := strconv.Itoa(opts.DBIndex)

	for {
		resp := c.Cmd("CLUSTER", "GETKEYSINSLOT", slot, batchStr)
		if err := a.Connections().ValidateResp(resp, addr, "unable to run command GETKEYSINSLOT"); err != nil {
			return keyCount, err
		}
		keys, err := resp.List()
		if err != nil {
			glog.Errorf("Wrong returned format for CLUSTER GETKEYSINSLOT: %v", err)
			return keyCount, err
		}

		if len(keys) == 0 {
			break
		}

		for _, key := range keys {
			resp = c.Cmd("MIGRATE", dest.IP, dest.Port, key, dbStr, timeoutStr)
			if err := a.Connections().ValidateResp(resp, addr, "unable to run command MIGRATE"); err != nil {
				return keyCount, err
			}
			keyCount++
		}
	}

	return keyCount, nil
}

// RunCommand issues an arbitrary command on the node and returns the raw formatted reply
func (a *Admin) RunCommand(addr string, command string, args ...string) (string, error) {
	c, err := a.Connections().Get(addr)
	if err != nil {
		return "", &ServerError{Addr: addr, Message: fmt.Sprintf("unable to run command %s", command), Cause: err}
	}

	cmdArgs := make([]interface{}, 0, len(args))
	for _, arg := range args {
		cmdArgs = append(cmdArgs, arg)
	}
	resp := c.Cmd(command, cmdArgs...)
	if err := a.Connections().ValidateResp(resp, addr, fmt.Sprintf("unable to run command %s", command)); err != nil {
		return "", err
	}
	return formatResp(resp), nil
}

func (a *Admin) getInfos(c ClientInterface, addr string) (*NodeInfos, error) {
	resp := c.Cmd("CLUSTER", "NODES")
	if err := a.Connections().ValidateResp(resp, addr, "unable to retrieve node info"); err != nil {
		return nil, err
	}

	raw, err := resp.Str()
	if err != nil {
		return nil, fmt.Errorf("wrong format from CLUSTER NODES: %v", err)
	}

	return DecodeNodeInfos(&raw, addr)
}

func (a *Admin) getInfoSection(addr, section string) (string, error) {
	c, err := a.Connections().Get(addr)
	if err != nil {
		return "", &ServerError{Addr: addr, Message: "unable to run command INFO", Cause: err}
	}
	resp := c.Cmd("INFO", section)
	if err := a.Connections().ValidateResp(resp, addr, "unable to run command INFO"); err != nil {
		return "", err
	}
	raw, err := resp.Str()
	if err != nil {
		return "", fmt.Errorf("wrong format from INFO %s: %v", section, err)
	}
	return raw, nil
}

// findInfoField scans an INFO-style "field:value" payload for the given field
func findInfoField(raw, field string) (string, bool) {
	for _, line := range strings.Split(raw, "\n") {
		values := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(values) == 2 && values[0] == field {
			return values[1], true
		}
	}
	return "", false
}

// formatResp renders a reply for operator display, whatever its type
func formatResp(resp *radix.Resp) string {
	if resp.IsType(radix.Array) {
		if list, err := resp.List(); err == nil {
			return strings.Join(list, "\n")
		}
	}
	if s, err := resp.Str(); err == nil {
		return s
	}
	if i, err := resp.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	return resp.String()
}
