// dtensor_layout prints, without allocating anything, how a distributed tensor would
// be laid out over a device mesh: one row per participant with its coordinates, local
// shard shape, element count and memory, plus a summary of the global metadata.
//
// Example:
//
//	dtensor_layout -mesh 2x4 -axes data,model -dims 1024,768 -placements "shard(0),replicate"
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/dtensor"
	"github.com/gomlx/dtensor/meshes"
	"github.com/gomlx/dtensor/placements"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagMesh = flag.String("mesh", "2", "Mesh grid, per-axis extents separated by 'x'. E.g.: \"2x4\".")
	flagAxes = flag.String("axes", "", "Comma-separated mesh axis names, e.g. \"data,model\". Empty for unnamed axes.")
	flagRanks = flag.String("ranks", "", "Comma-separated participant ranks in row-major mesh cell order. "+
		"Empty assigns ranks 0..N-1.")
	flagDims       = flag.String("dims", "", "Comma-separated global tensor dimensions, e.g. \"1024,768\". Empty for a scalar.")
	flagDType      = flag.String("dtype", "float32", "Element type of the tensor.")
	flagPlacements = flag.String("placements", "", "Comma-separated placements, one per mesh axis: "+
		"replicate, shard(D) or partial[(op)]. Empty replicates on every axis.")
	flagDevice = flag.String("device", "", "Device type tag of the mesh, e.g. \"cuda\". Defaults to cpu.")
)

func main() {
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %v. See 'dtensor_layout -help'.", flag.Args())
		os.Exit(1)
	}

	meshDims := must.M1(parseMeshDims(*flagMesh))
	var mesh *meshes.DeviceMesh
	if *flagRanks != "" {
		ranks := must.M1(parseIntList(*flagRanks))
		mesh = must.M1(meshes.NewWithRanks("layout", meshDims, parseAxisNames(*flagAxes), ranks))
	} else {
		mesh = must.M1(meshes.New("layout", meshDims, parseAxisNames(*flagAxes)))
	}
	if *flagDevice != "" {
		mesh = mesh.WithDeviceType(*flagDevice)
	}

	dims := must.M1(parseIntList(*flagDims))
	dtype := must.M1(dtypes.DTypeString(*flagDType))
	global := shapes.Make(dtype, dims...)

	placs := must.M1(parsePlacements(*flagPlacements))
	if placs == nil {
		placs = placements.ReplicateAll(mesh.NumAxes())
	}

	report(mesh, global, placs)
}

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				s = headerRowStyle
				return
			}
			switch {
			case row%2 == 0:
				// Even row style.
				s = oddRowStyle
			default:
				// Odd row style
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func report(mesh *meshes.DeviceMesh, global shapes.Shape, placs []placements.Placement) {
	placStrs := make([]string, len(placs))
	for ii, p := range placs {
		placStrs[ii] = p.String()
	}

	fmt.Println(titleStyle.Render("Layout"))
	table := newPlainTable(false)
	table.Row("mesh", mesh.String())
	table.Row("global shape", global.String())
	table.Row("global strides", fmt.Sprintf("%v", global.Strides()))
	table.Row("placements", strings.Join(placStrs, ", "))
	table.Row("# elements", humanize.Comma(int64(global.Size())))
	table.Row("global bytes", humanize.Bytes(uint64(global.Memory())))
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Participants"))
	table = newPlainTable(true)
	table.Row("Rank", "Coordinates", "Local Shape", "Elements", "Bytes")
	var totalMemory uintptr
	for _, rank := range mesh.Ranks() {
		local, err := dtensor.LocalShapeOf(global, mesh, placs, rank)
		if err != nil {
			klog.Errorf("Cannot lay out %s over %s: %+v", global, mesh, err)
			os.Exit(1)
		}
		coords := must.M1(mesh.CoordinateOf(rank))
		totalMemory += local.Memory()
		table.Row(
			humanize.Comma(int64(rank)),
			fmt.Sprintf("%v", coords),
			local.String(),
			humanize.Comma(int64(local.Size())),
			humanize.Bytes(uint64(local.Memory())),
		)
	}
	fmt.Println(table.Render())

	fmt.Printf("Total materialized across %d participants: %s (global tensor is %s)\n",
		mesh.NumDevices(), humanize.Bytes(uint64(totalMemory)), humanize.Bytes(uint64(global.Memory())))
}
