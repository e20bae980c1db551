package redis

import (
	"reflect"
	"testing"
)

func TestNodeString(t *testing.T) {
	node := Node{ID: "id1", IP: "1.2.3.4", Port: "6379", Role: "master", LinkState: "connected", Slots: BuildSlotSlice(1, 10)}
	expected := "{Redis ID: id1, role: Master, master: , link: connected, status: [], addr: 1.2.3.4:6379, slots: [1-10], len(migratingSlots): 0, len(importingSlots): 0}"
	if node.String() != expected {
		t.Errorf("Unexpected String():\n%s\nexpected:\n%s", node.String(), expected)
	}
}

func TestSetRole(t *testing.T) {
	testCases := []struct {
		flags string
		role  string
		err   bool
	}{
		{"master", redisMasterRole, false},
		{"myself,master", redisMasterRole, false},
		{"slave", redisSlaveRole, false},
		{"myself,slave", redisSlaveRole, false},
		{"myself", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		node := NewDefaultNode()
		err := node.SetRole(tc.flags)
		if (err != nil) != tc.err {
			t.Errorf("[case: %s] unexpected error status, got err '%v'", tc.flags, err)
		}
		if node.Role != tc.role {
			t.Errorf("[case: %s] unexpected role, got '%s', expected '%s'", tc.flags, node.Role, tc.role)
		}
	}
}

func TestSetLinkStatus(t *testing.T) {
	testCases := []struct {
		status string
		link   string
		err    bool
	}{
		{"connected", RedisLinkStateConnected, false},
		{"disconnected", RedisLinkStateDisconnected, false},
		{"unknown", "", true},
		{"", "", true},
	}

	for _, tc := range testCases {
		node := NewDefaultNode()
		err := node.SetLinkStatus(tc.status)
		if (err != nil) != tc.err {
			t.Errorf("[case: %s] unexpected error status, got err '%v'", tc.status, err)
		}
		if node.LinkState != tc.link {
			t.Errorf("[case: %s] unexpected link state, got '%s', expected '%s'", tc.status, node.LinkState, tc.link)
		}
	}
}

func TestSetFailureStatus(t *testing.T) {
	node := NewDefaultNode()
	node.SetFailureStatus("myself,master,fail")
	if !node.HasStatus(NodeStatusFail) {
		t.Error("expected the fail status to be set")
	}
	if node.HasStatus(NodeStatusPFail) {
		t.Error("did not expect the fail? status to be set")
	}

	node.SetFailureStatus("myself,master")
	if len(node.FailStatus) != 0 {
		t.Errorf("expected no failure status, got %v", node.FailStatus)
	}
}

func TestSetReferentMaster(t *testing.T) {
	node := NewDefaultNode()
	node.SetReferentMaster("master-id")
	if node.MasterReferent != "master-id" {
		t.Errorf("unexpected referent, got '%s'", node.MasterReferent)
	}
	node.SetReferentMaster("-")
	if node.MasterReferent != "" {
		t.Errorf("expected empty referent for '-', got '%s'", node.MasterReferent)
	}
}

func TestIsReachable(t *testing.T) {
	testCases := []struct {
		desc      string
		node      *Node
		reachable bool
	}{
		{"connected master", &Node{LinkState: RedisLinkStateConnected}, true},
		{"disconnected link", &Node{LinkState: RedisLinkStateDisconnected}, false},
		{"fail state", &Node{LinkState: RedisLinkStateConnected, FailStatus: []string{NodeStatusFail}}, false},
		{"no address", &Node{LinkState: RedisLinkStateConnected, FailStatus: []string{NodeStatusNoAddr}}, false},
		{"pfail only", &Node{LinkState: RedisLinkStateConnected, FailStatus: []string{NodeStatusPFail}}, true},
	}

	for _, tc := range testCases {
		if tc.node.IsReachable() != tc.reachable {
			t.Errorf("[case: %s] expected IsReachable=%v", tc.desc, tc.reachable)
		}
	}
}

func TestNodesGetters(t *testing.T) {
	n1 := &Node{ID: "n1", IP: "1.1.1.1", Port: "6379", Role: redisMasterRole, Slots: []Slot{1}}
	n2 := &Node{ID: "n2", IP: "1.1.1.2", Port: "6379", Role: redisMasterRole, Slots: []Slot{}}
	n3 := &Node{ID: "n3", IP: "1.1.1.3", Port: "6379", Role: redisSlaveRole, MasterReferent: "n1"}
	nodes := Nodes{n2, n3, n1}

	node, err := nodes.GetNodeByID("n3")
	if err != nil || node != n3 {
		t.Errorf("GetNodeByID: got (%v, %v), expected n3", node, err)
	}
	if _, err = nodes.GetNodeByID("unknown"); err != ErrNotFound {
		t.Errorf("GetNodeByID: expected ErrNotFound, got %v", err)
	}

	node, err = nodes.GetNodeByIPPort("1.1.1.2:6379")
	if err != nil || node != n2 {
		t.Errorf("GetNodeByIPPort: got (%v, %v), expected n2", node, err)
	}
	if _, err = nodes.GetNodeByIPPort("9.9.9.9:6379"); err != ErrNotFound {
		t.Errorf("GetNodeByIPPort: expected ErrNotFound, got %v", err)
	}

	masters, err := nodes.GetNodesByFunc(IsMasterWithSlot)
	if err != nil || len(masters) != 1 || masters[0] != n1 {
		t.Errorf("GetNodesByFunc(IsMasterWithSlot): got (%v, %v)", masters, err)
	}
	if _, err = nodes.GetNodesByFunc(func(n *Node) bool { return false }); err != ErrNotFound {
		t.Errorf("GetNodesByFunc: expected ErrNotFound, got %v", err)
	}

	empties := nodes.FilterByFunc(IsMasterWithNoSlot)
	if len(empties) != 1 || empties[0] != n2 {
		t.Errorf("FilterByFunc(IsMasterWithNoSlot): got %v", empties)
	}
	slaves := nodes.FilterByFunc(IsSlave)
	if len(slaves) != 1 || slaves[0] != n3 {
		t.Errorf("FilterByFunc(IsSlave): got %v", slaves)
	}
}

func TestSortByFunc(t *testing.T) {
	n1 := &Node{ID: "a", Slots: []Slot{1, 2}}
	n2 := &Node{ID: "b", Slots: []Slot{1, 2, 3}}
	n3 := &Node{ID: "c", Slots: []Slot{1, 2}}
	nodes := Nodes{n1, n2, n3}

	sorted := nodes.SortByFunc(func(a, b *Node) bool { return a.TotalSlots() > b.TotalSlots() })

	if !reflect.DeepEqual(sorted, Nodes{n2, n1, n3}) {
		t.Errorf("expected stable descending sort [b a c], got %s", sorted)
	}
	// input order must be left untouched
	if !reflect.DeepEqual(nodes, Nodes{n1, n2, n3}) {
		t.Errorf("input slice was reordered: %s", nodes)
	}
}
