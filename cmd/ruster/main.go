package main

import (
	"errors"
	goflag "flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/elcuervo/ruster/pkg/cluster"
	"github.com/elcuervo/ruster/pkg/config"
	"github.com/elcuervo/ruster/pkg/redis"
)

// populated at build time with -ldflags "-X main.VERSION=... -X main.COMMIT=..."
var (
	VERSION string
	COMMIT  string
)

func main() {
	cfg := config.NewConfig()
	cfg.AddFlags(pflag.CommandLine)

	pflag.Usage = usage
	pflag.Parse()

	// glog owns the goflag set; the repeatable -v count drives its level
	goflag.CommandLine.Parse([]string{})
	goflag.Set("logtostderr", "true")
	goflag.Set("v", strconv.Itoa(cfg.Verbosity*2))

	glog.V(1).Infof("ruster VERSION=%s COMMIT=%s", VERSION, COMMIT)
	glog.V(2).Info(cfg.String())

	args := pflag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	if err := run(cfg, args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ruster:", err)
		if cfg.Verbosity >= 2 {
			for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
				fmt.Fprintln(os.Stderr, "  caused by:", cause)
			}
		}
		glog.Flush()
		os.Exit(1)
	}

	glog.Flush()
}

func run(cfg *config.Config, action string, args []string) error {
	options := &redis.AdminOptions{
		ConnectionTimeout:  cfg.ConnectionTimeoutDuration(),
		RenameCommandsFile: cfg.RenameCommandsFile,
	}
	out := os.Stdout

	switch action {
	case "create":
		if len(args) < 1 {
			return fmt.Errorf("create needs at least one node address")
		}
		admin := redis.NewAdmin(args, options)
		defer admin.Close()
		return cluster.NewCreator(admin, out).Create(args)

	case "add":
		if len(args) != 2 {
			return fmt.Errorf("add needs a cluster node address and the address of the node to add")
		}
		admin := redis.NewAdmin([]string{args[0]}, options)
		defer admin.Close()
		return cluster.AddNode(admin, out, args[0], args[1])

	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("remove needs a cluster node address and the address of the node to remove")
		}
		admin := redis.NewAdmin([]string{args[0]}, options)
		defer admin.Close()
		return cluster.RemoveNode(admin, out, args[1])

	case "each":
		if len(args) < 2 {
			return fmt.Errorf("each needs a cluster node address and a command")
		}
		admin := redis.NewAdmin([]string{args[0]}, options)
		defer admin.Close()
		infos, err := admin.GetClusterNodes()
		if err != nil {
			return err
		}
		cluster.NewBroadcaster(admin, out).Each(infos.Nodes(), args[1], args[2:]...)
		return nil

	case "nodes":
		if len(args) < 1 {
			return fmt.Errorf("nodes needs at least one cluster node address")
		}
		admin := redis.NewAdmin(args, options)
		defer admin.Close()
		infos, err := admin.GetClusterNodes()
		if err != nil {
			return err
		}
		for _, friend := range infos.Friends {
			if friend.IsReachable() {
				admin.Connections().Add(friend.IPPort())
			}
		}
		clusterInfos, err := admin.GetClusterInfos()
		if err != nil {
			return err
		}
		cluster.PrintTopology(clusterInfos, out)
		return nil

	case "reshard":
		if len(args) < 3 {
			return fmt.Errorf("reshard needs a target address, a slot count and at least one source address")
		}
		slotCount, err := strconv.Atoi(args[1])
		if err != nil || slotCount <= 0 {
			return fmt.Errorf("invalid slot count '%s'", args[1])
		}
		admin := redis.NewAdmin(nil, options)
		defer admin.Close()
		return cluster.NewResharder(admin, out).Reshard(args[0], slotCount, args[2:], cluster.ReshardOptions{
			Timeout: cfg.MigrateTimeout,
			DBIndex: cfg.MigrateDB,
		})

	default:
		usage()
		return fmt.Errorf("unknown action '%s'", action)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: ruster [flags] <action> [arguments]

actions:
  create  <node-addr>...                       create a cluster from bare nodes
  add     <cluster-addr> <node-addr>           add a node to the cluster
  remove  <cluster-addr> <node-addr>           remove a node from the cluster
  each    <cluster-addr> <command> [args]...   run a command on every node
  nodes   <cluster-addr>...                    print the cluster topology
  reshard <target-addr> <count> <source>...    move slots to the target node

flags:
`)
	pflag.PrintDefaults()
}
