// Package fake provides a scriptable redis.AdminInterface recording every
// mutating call, for testing the operator flows without live nodes.
package fake

import (
	"fmt"

	"github.com/elcuervo/ruster/pkg/redis"
)

// RunCommandRetType scripted return data of the RunCommand method
type RunCommandRetType struct {
	Reply string
	Err   error
}

// MigrateSlotRetType scripted return data of the MigrateSlot method
type MigrateSlotRetType struct {
	Moved int
	Err   error
}

// Admin fake redis admin where the returns are scriptable per address and
// every mutating call is appended to Journal in program order. Unscripted
// calls succeed with zero values, except KnownNodes which defaults to 1 and
// ClusterEnabled which defaults to true.
type Admin struct {
	Journal []string

	// SeedAddr address answering the topology discovery
	SeedAddr string
	// NodeInfosRet snapshot returned per queried address
	NodeInfosRet map[string]*redis.NodeInfos
	// ClusterInfosRet returned value for GetClusterInfos
	ClusterInfosRet *redis.ClusterInfos
	// ClusterDisabled addresses reporting cluster support off
	ClusterDisabled map[string]bool
	// KnownNodesRet known-node count per address, missing means 1
	KnownNodesRet map[string]int
	// HasKeysRet non-empty key space per address
	HasKeysRet map[string]bool
	// AddSlotsErr scripted error per address
	AddSlotsErr map[string]error
	// AddedSlots slots claimed per address
	AddedSlots map[string][]redis.Slot
	// AttachErr scripted error per attached address
	AttachErr map[string]error
	// ForgetErr scripted error per instructed address
	ForgetErr map[string]error
	// SetSlotErr scripted error keyed by "addr/action"
	SetSlotErr map[string]error
	// CountKeysRet key count per slot
	CountKeysRet map[redis.Slot]int64
	// GetKeysRet scripted key batch per slot
	GetKeysRet map[redis.Slot][]string
	// MigrateSlotRet scripted return per slot
	MigrateSlotRet map[redis.Slot]MigrateSlotRetType
	// RunCommandRet scripted return per address
	RunCommandRet map[string]RunCommandRetType
}

// NewAdmin returns new fake Admin instance
func NewAdmin() *Admin {
	return &Admin{
		NodeInfosRet:    make(map[string]*redis.NodeInfos),
		ClusterDisabled: make(map[string]bool),
		KnownNodesRet:   make(map[string]int),
		HasKeysRet:      make(map[string]bool),
		AddSlotsErr:     make(map[string]error),
		AddedSlots:      make(map[string][]redis.Slot),
		AttachErr:       make(map[string]error),
		ForgetErr:       make(map[string]error),
		SetSlotErr:      make(map[string]error),
		CountKeysRet:    make(map[redis.Slot]int64),
		GetKeysRet:      make(map[redis.Slot][]string),
		MigrateSlotRet:  make(map[redis.Slot]MigrateSlotRetType),
		RunCommandRet:   make(map[string]RunCommandRetType),
	}
}

// Connections not used by the fake
func (a *Admin) Connections() redis.AdminConnectionsInterface {
	return nil
}

// Close does nothing
func (a *Admin) Close() {}

// GetClusterNodes returns the snapshot scripted for SeedAddr
func (a *Admin) GetClusterNodes() (*redis.NodeInfos, error) {
	return a.GetClusterNodesFrom(a.SeedAddr)
}

// GetClusterNodesFrom returns the snapshot scripted for the given address
func (a *Admin) GetClusterNodesFrom(addr string) (*redis.NodeInfos, error) {
	infos, ok := a.NodeInfosRet[addr]
	if !ok {
		return nil, &redis.ServerError{Addr: addr, Message: "no scripted node infos"}
	}
	return infos, nil
}

// GetClusterInfos returns the scripted cluster infos
func (a *Admin) GetClusterInfos() (*redis.ClusterInfos, error) {
	if a.ClusterInfosRet == nil {
		return nil, fmt.Errorf("no scripted cluster infos")
	}
	return a.ClusterInfosRet, nil
}

// ClusterEnabled returns true unless the address is scripted as disabled
func (a *Admin) ClusterEnabled(addr string) (bool, error) {
	return !a.ClusterDisabled[addr], nil
}

// HasKeys returns the scripted key space state, empty by default
func (a *Admin) HasKeys(addr string) (bool, error) {
	return a.HasKeysRet[addr], nil
}

// KnownNodes returns the scripted known-node count, 1 by default
func (a *Admin) KnownNodes(addr string) (int, error) {
	if known, ok := a.KnownNodesRet[addr]; ok {
		return known, nil
	}
	return 1, nil
}

// AddSlots records the slot claim
func (a *Admin) AddSlots(addr string, slots []redis.Slot) error {
	if err := a.AddSlotsErr[addr]; err != nil {
		return err
	}
	a.Journal = append(a.Journal, fmt.Sprintf("ADDSLOTS %s %d", addr, len(slots)))
	a.AddedSlots[addr] = append(a.AddedSlots[addr], slots...)
	return nil
}

// SetSlot records the slot state transition
func (a *Admin) SetSlot(addr string, slot redis.Slot, action string, nodeID string) error {
	if err := a.SetSlotErr[addr+"/"+action]; err != nil {
		return err
	}
	a.Journal = append(a.Journal, fmt.Sprintf("SETSLOT %s %s %s %s", addr, slot, action, nodeID))
	return nil
}

// SetSlots records the slot state transitions one by one
func (a *Admin) SetSlots(addr string, action string, slots []redis.Slot, nodeID string) error {
	for _, slot := range slots {
		if err := a.SetSlot(addr, slot, action, nodeID); err != nil {
			return err
		}
	}
	return nil
}

// AttachNodeToCluster records the introduction
func (a *Admin) AttachNodeToCluster(seedAddr, addr string) error {
	if err := a.AttachErr[addr]; err != nil {
		return err
	}
	a.Journal = append(a.Journal, fmt.Sprintf("MEET %s %s", seedAddr, addr))
	return nil
}

// ForgetNode records the removal instruction
func (a *Admin) ForgetNode(addr string, id string) error {
	if err := a.ForgetErr[addr]; err != nil {
		return err
	}
	a.Journal = append(a.Journal, fmt.Sprintf("FORGET %s %s", addr, id))
	return nil
}

// CountKeysInSlot returns the scripted key count
func (a *Admin) CountKeysInSlot(addr string, slot redis.Slot) (int64, error) {
	return a.CountKeysRet[slot], nil
}

// GetKeysInSlot returns the scripted key batch
func (a *Admin) GetKeysInSlot(addr string, slot redis.Slot, batch int) ([]string, error) {
	return a.GetKeysRet[slot], nil
}

// MigrateSlot records the drain and returns the scripted result
func (a *Admin) MigrateSlot(addr string, dest *redis.Node, slot redis.Slot, opts redis.MigrateOptions) (int, error) {
	ret := a.MigrateSlotRet[slot]
	if ret.Err != nil {
		return ret.Moved, ret.Err
	}
	a.Journal = append(a.Journal, fmt.Sprintf("MIGRATESLOT %s %s %s", addr, dest.IPPort(), slot))
	return ret.Moved, nil
}

// RunCommand records the call and returns the scripted reply
func (a *Admin) RunCommand(addr string, command string, args ...string) (string, error) {
	ret := a.RunCommandRet[addr]
	if ret.Err != nil {
		return "", ret.Err
	}
	a.Journal = append(a.Journal, fmt.Sprintf("CMD %s %s", addr, command))
	return ret.Reply, nil
}
