package cluster

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/elcuervo/ruster/pkg/redis"
)

// PrintTopology renders the consolidated cluster view as a table, one row per
// node as the node sees itself, followed by the consistency status of the
// snapshot set.
func PrintTopology(infos *redis.ClusterInfos, out io.Writer) {
	nodes := infos.GetNodes().SortByFunc(redis.LessByID)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Address", "Role", "Link", "Status", "Slots"})
	table.SetBorders(tablewriter.Border{Left: false, Top: false, Right: false, Bottom: false})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetRowLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)

	for _, node := range nodes {
		table.Append([]string{
			node.ID,
			node.IPPort(),
			node.GetRole(),
			node.LinkState,
			strings.Join(node.FailStatus, ","),
			redis.SlotSlice(node.Slots).String(),
		})
	}
	table.Render()

	fmt.Fprintf(out, "cluster view: %s\n", infos.Status)
}
