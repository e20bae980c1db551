package cluster

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/elcuervo/ruster/pkg/cluster/fake"
	"github.com/elcuervo/ruster/pkg/redis"
)

func TestComputeShares(t *testing.T) {
	g := NewGomegaWithT(t)

	sources := redis.Nodes{
		nodeWithSlots("src1", "10.0.0.1", 0, 100),
		nodeWithSlots("src2", "10.0.0.2", 200, 50),
		nodeWithSlots("src3", "10.0.0.3", 400, 25),
	}
	g.Expect(computeShares(sources, 35, 175)).To(Equal([]int{20, 10, 5}))

	// truncation toward zero, the loss is not redistributed
	even := redis.Nodes{
		nodeWithSlots("src1", "10.0.0.1", 0, 1),
		nodeWithSlots("src2", "10.0.0.2", 10, 1),
		nodeWithSlots("src3", "10.0.0.3", 20, 1),
	}
	g.Expect(computeShares(even, 2, 3)).To(Equal([]int{0, 0, 0}))

	// a share never exceeds what the source owns
	single := redis.Nodes{nodeWithSlots("src1", "10.0.0.1", 0, 100)}
	g.Expect(computeShares(single, 200, 100)).To(Equal([]int{100}))
}

func TestReshardProportionalShares(t *testing.T) {
	g := NewGomegaWithT(t)

	admin, target, sources := buildReshardTopology(100, 50, 25)
	out := &bytes.Buffer{}

	err := NewResharder(admin, out).Reshard(target.IPPort(), 35, sourceAddrs(sources), ReshardOptions{Timeout: 1000})
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(countJournal(admin, "MIGRATING", sources[0].IPPort())).To(Equal(20))
	g.Expect(countJournal(admin, "MIGRATING", sources[1].IPPort())).To(Equal(10))
	g.Expect(countJournal(admin, "MIGRATING", sources[2].IPPort())).To(Equal(5))

	// largest donor first
	first := admin.Journal[0]
	g.Expect(first).To(ContainSubstring("IMPORTING"))
	g.Expect(first).To(ContainSubstring(target.IPPort()))
}

func TestReshardMoreThanAvailable(t *testing.T) {
	g := NewGomegaWithT(t)

	// asking for more slots than the sources own drains them completely
	admin, target, sources := buildReshardTopology(100)

	err := NewResharder(admin, &bytes.Buffer{}).Reshard(target.IPPort(), 200, sourceAddrs(sources), ReshardOptions{Timeout: 1000})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(countJournal(admin, "MIGRATING", sources[0].IPPort())).To(Equal(100))
}

func TestReshardZeroShares(t *testing.T) {
	g := NewGomegaWithT(t)

	admin, target, sources := buildReshardTopology(1, 1, 1)

	err := NewResharder(admin, &bytes.Buffer{}).Reshard(target.IPPort(), 2, sourceAddrs(sources), ReshardOptions{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(admin.Journal).To(BeEmpty())
}

func TestReshardNoSlots(t *testing.T) {
	g := NewGomegaWithT(t)

	admin, target, sources := buildReshardTopology(0, 0, 0)

	err := NewResharder(admin, &bytes.Buffer{}).Reshard(target.IPPort(), 10, sourceAddrs(sources), ReshardOptions{})
	var noSlots *redis.NoSlotsError
	g.Expect(errors.As(err, &noSlots)).To(BeTrue(), "expected a NoSlotsError, got %v", err)
	g.Expect(admin.Journal).To(BeEmpty())
}

func TestReshardSlotProtocolOrder(t *testing.T) {
	g := NewGomegaWithT(t)

	admin, target, sources := buildReshardTopology(1)
	source := sources[0]

	err := NewResharder(admin, &bytes.Buffer{}).Reshard(target.IPPort(), 1, sourceAddrs(sources), ReshardOptions{Timeout: 1000})
	g.Expect(err).NotTo(HaveOccurred())

	importing := journalIndex(admin, fmt.Sprintf("SETSLOT %s 0 IMPORTING %s", target.IPPort(), source.ID))
	migrating := journalIndex(admin, fmt.Sprintf("SETSLOT %s 0 MIGRATING %s", source.IPPort(), target.ID))
	drain := journalIndex(admin, fmt.Sprintf("MIGRATESLOT %s %s 0", source.IPPort(), target.IPPort()))
	ownerOnTarget := journalIndex(admin, fmt.Sprintf("SETSLOT %s 0 NODE %s", target.IPPort(), target.ID))
	ownerOnSource := journalIndex(admin, fmt.Sprintf("SETSLOT %s 0 NODE %s", source.IPPort(), target.ID))

	// importing lands on the target before the source starts migrating, the
	// drain follows, then the new owner learns first
	g.Expect(importing).To(BeNumerically(">=", 0))
	g.Expect(migrating).To(BeNumerically(">", importing))
	g.Expect(drain).To(BeNumerically(">", migrating))
	g.Expect(ownerOnTarget).To(BeNumerically(">", drain))
	g.Expect(ownerOnSource).To(BeNumerically(">", ownerOnTarget))
}

func TestReshardFailFast(t *testing.T) {
	g := NewGomegaWithT(t)

	admin, target, sources := buildReshardTopology(3)
	source := sources[0]
	admin.MigrateSlotRet[1] = fake.MigrateSlotRetType{Moved: 2, Err: errors.New("IOERR scripted failure")}

	err := NewResharder(admin, &bytes.Buffer{}).Reshard(target.IPPort(), 3, sourceAddrs(sources), ReshardOptions{Timeout: 1000})
	g.Expect(err).To(HaveOccurred())

	// slot 0 went through, slot 1 aborted mid-flight, slot 2 was never touched
	g.Expect(journalIndex(admin, fmt.Sprintf("SETSLOT %s 1 MIGRATING %s", source.IPPort(), target.ID))).To(BeNumerically(">=", 0))
	g.Expect(journalIndex(admin, fmt.Sprintf("SETSLOT %s 1 NODE %s", target.IPPort(), target.ID))).To(Equal(-1))
	g.Expect(journalIndex(admin, fmt.Sprintf("SETSLOT %s 2 IMPORTING %s", target.IPPort(), source.ID))).To(Equal(-1))
}

func TestReshardToleratesConvergenceFailure(t *testing.T) {
	g := NewGomegaWithT(t)

	admin, target, sources := buildReshardTopology(1)
	bystander := redis.NewNode("bystander", "10.0.0.8")
	bystander.Role = "master"
	bystander.LinkState = redis.RedisLinkStateConnected
	admin.NodeInfosRet[target.IPPort()].Friends = append(admin.NodeInfosRet[target.IPPort()].Friends, bystander)
	admin.SetSlotErr[bystander.IPPort()+"/NODE"] = errors.New("scripted failure")

	out := &bytes.Buffer{}
	err := NewResharder(admin, out).Reshard(target.IPPort(), 1, sourceAddrs(sources), ReshardOptions{Timeout: 1000})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(out.String()).To(ContainSubstring("warning: node " + bystander.IPPort()))
}

// buildReshardTopology scripts a topology with one empty target node and one
// source node per given count, each owning that many contiguous slots starting
// at i*1000
func buildReshardTopology(slotCounts ...int) (*fake.Admin, *redis.Node, redis.Nodes) {
	target := redis.NewNode("target", "10.0.0.9")
	target.Role = "master"
	target.LinkState = redis.RedisLinkStateConnected

	admin := fake.NewAdmin()
	sources := redis.Nodes{}
	for i, count := range slotCounts {
		source := nodeWithSlots(fmt.Sprintf("src%d", i+1), fmt.Sprintf("10.0.0.%d", i+1), i*1000, count)
		sources = append(sources, source)
		admin.NodeInfosRet[source.IPPort()] = &redis.NodeInfos{Node: source, Friends: redis.Nodes{target}}
	}
	admin.NodeInfosRet[target.IPPort()] = &redis.NodeInfos{Node: target, Friends: sources}

	return admin, target, sources
}

func nodeWithSlots(id, ip string, firstSlot, count int) *redis.Node {
	node := redis.NewNode(id, ip)
	node.Role = "master"
	node.LinkState = redis.RedisLinkStateConnected
	if count > 0 {
		node.Slots = redis.BuildSlotSlice(redis.Slot(firstSlot), redis.Slot(firstSlot+count-1))
	}
	return node
}

func sourceAddrs(sources redis.Nodes) []string {
	addrs := make([]string, 0, len(sources))
	for _, source := range sources {
		addrs = append(addrs, source.IPPort())
	}
	return addrs
}

func countJournal(admin *fake.Admin, action, addr string) int {
	count := 0
	for _, entry := range admin.Journal {
		if strings.Contains(entry, action) && strings.Contains(entry, addr) {
			count++
		}
	}
	return count
}

func journalIndex(admin *fake.Admin, entry string) int {
	for i, e := range admin.Journal {
		if e == entry {
			return i
		}
	}
	return -1
}
