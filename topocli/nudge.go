package topocli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cdr.dev/slog"

	"oss.terrastruct.com/util-go/xdefer"
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/topo/lib/geo"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topoavoid"
)

// nudgeCmd pushes overlapping siblings apart without a full tidy.
func nudgeCmd(ctx context.Context, ms *xmain.State, opts *topoavoid.Options) (err error) {
	defer xdefer.Errorf(&err, "failed to nudge")

	args := ms.Opts.Flags.Args()[1:]
	if len(args) == 0 {
		return xmain.UsageErrorf("nudge must be passed an input file")
	} else if len(args) > 2 {
		return xmain.UsageErrorf("too many arguments passed")
	}
	inputPath, outputPath := args[0], "-"
	if len(args) == 2 {
		outputPath = args[1]
	}

	g, err := readDiagram(ms, inputPath)
	if err != nil {
		return err
	}

	res := topoavoid.Apply(g, opts)
	log.Debug(ctx, "nudged nodes",
		slog.F("nudged", res.NudgedCount),
		slog.F("iterations", res.Iterations),
		slog.F("overlap_area", res.OverlapArea),
	)
	for id, p := range res.Nudged {
		n, _ := g.Node(id)
		n.TopLeft = p
	}

	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	if outputPath != "-" {
		outputPath = ms.AbsPath(outputPath)
	}
	err = ms.WritePath(outputPath, out)
	if err != nil {
		return err
	}
	if res.HadCollisions {
		ms.Log.Info.Printf("nudged %d nodes over %d rounds", res.NudgedCount, res.Iterations)
	}
	return nil
}

// dragCmd prints the corrected position for a node dropped at x,y, or null when it is clear.
func dragCmd(ctx context.Context, ms *xmain.State, opts *topoavoid.Options) (err error) {
	defer xdefer.Errorf(&err, "failed to check drag")

	args := ms.Opts.Flags.Args()[1:]
	if len(args) != 4 {
		return xmain.UsageErrorf("drag must be passed an input file, a node id and the proposed x and y")
	}
	x, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return xmain.UsageErrorf("invalid x %q: %v", args[2], err)
	}
	y, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return xmain.UsageErrorf("invalid y %q: %v", args[3], err)
	}

	g, err := readDiagram(ms, args[0])
	if err != nil {
		return err
	}
	if _, ok := g.Node(args[1]); !ok {
		return fmt.Errorf("unknown node %q", args[1])
	}

	p := topoavoid.AvoidDragged(g, args[1], geo.NewPoint(x, y), opts)
	log.Debug(ctx, "checked drag", slog.F("node", args[1]), slog.F("corrected", p != nil))
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(ms.Stdout, string(b))
	return nil
}

func readDiagram(ms *xmain.State, inputPath string) (*topograph.Graph, error) {
	if inputPath != "-" {
		inputPath = ms.AbsPath(inputPath)
	}
	input, err := ms.ReadPath(inputPath)
	if err != nil {
		return nil, err
	}
	return topograph.ParseDiagram(input)
}
