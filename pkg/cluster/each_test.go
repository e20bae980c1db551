package cluster

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/elcuervo/ruster/pkg/cluster/fake"
	"github.com/elcuervo/ruster/pkg/redis"
)

func TestEach(t *testing.T) {
	admin := fake.NewAdmin()
	n1 := redis.NewNode("n1", "10.0.0.1")
	n2 := redis.NewNode("n2", "10.0.0.2")
	n3 := redis.NewNode("n3", "10.0.0.3")
	admin.RunCommandRet[n1.IPPort()] = fake.RunCommandRetType{Reply: "PONG"}
	admin.RunCommandRet[n2.IPPort()] = fake.RunCommandRetType{Reply: "PONG"}
	admin.RunCommandRet[n3.IPPort()] = fake.RunCommandRetType{Reply: "PONG"}

	out := &bytes.Buffer{}
	NewBroadcaster(admin, out).Each(redis.Nodes{n1, n2, n3}, "PING")

	expected := []string{"CMD 10.0.0.1:6379 PING", "CMD 10.0.0.2:6379 PING", "CMD 10.0.0.3:6379 PING"}
	if !reflect.DeepEqual(admin.Journal, expected) {
		t.Errorf("unexpected journal: %v", admin.Journal)
	}
	if strings.Count(out.String(), "PONG") != 3 {
		t.Errorf("expected one reply per node, got:\n%s", out.String())
	}
}

func TestEachContinuesOnFailure(t *testing.T) {
	admin := fake.NewAdmin()
	n1 := redis.NewNode("n1", "10.0.0.1")
	n2 := redis.NewNode("n2", "10.0.0.2")
	n3 := redis.NewNode("n3", "10.0.0.3")
	admin.RunCommandRet[n1.IPPort()] = fake.RunCommandRetType{Reply: "PONG"}
	admin.RunCommandRet[n2.IPPort()] = fake.RunCommandRetType{Err: errors.New("scripted failure")}
	admin.RunCommandRet[n3.IPPort()] = fake.RunCommandRetType{Reply: "PONG"}

	out := &bytes.Buffer{}
	NewBroadcaster(admin, out).Each(redis.Nodes{n1, n2, n3}, "PING")

	// the failed node is reported and the remaining nodes are still served
	if !strings.Contains(out.String(), "10.0.0.2:6379: error:") {
		t.Errorf("expected the failure to be reported, got:\n%s", out.String())
	}
	expected := []string{"CMD 10.0.0.1:6379 PING", "CMD 10.0.0.3:6379 PING"}
	if !reflect.DeepEqual(admin.Journal, expected) {
		t.Errorf("unexpected journal: %v", admin.Journal)
	}
}
