package topocli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cdr.dev/slog"
	"github.com/spf13/pflag"

	"oss.terrastruct.com/util-go/xdefer"
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/topo/lib/env"
	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/lib/version"
	"oss.terrastruct.com/topo/topograph"
	"oss.terrastruct.com/topo/topolayouts/topoavoid"
	"oss.terrastruct.com/topo/topolayouts/topotidy"
)

func Run(ctx context.Context, ms *xmain.State) (err error) {
	ctx = log.Stderr(ctx)

	watchFlag, err := ms.Opts.Bool("TOPO_WATCH", "watch", "w", false, "watch the input for changes and tidy again on every write.")
	if err != nil {
		return err
	}
	debugFlag, err := ms.Opts.Bool("DEBUG", "debug", "d", false, "print debug logs.")
	if err != nil {
		return err
	}
	configFlag := ms.Opts.String("TOPO_CONFIG", "config", "c", env.ConfigPath(), "path to a TOML file of tidy options. Flags override the file.")
	strategyFlag := ms.Opts.String("TOPO_STRATEGY", "strategy", "", "", "layout strategy: nested or legacy (default legacy)")
	directionFlag := ms.Opts.String("TOPO_DIRECTION", "direction", "", "", "flow direction: TB, BT, LR or RL (default TB)")
	tierFlag := ms.Opts.String("TOPO_TIER", "tier", "t", "", "boundary spacing tier: compact, comfortable or spacious (default comfortable)")
	paddingFlag, err := ms.Opts.Float64("TOPO_PADDING", "padding", "p", 0, "pixels between a boundary's edge and its children. 0 uses the tier spacing.")
	if err != nil {
		return err
	}
	nodeSpacingFlag, err := ms.Opts.Float64("TOPO_NODE_SPACING", "node-spacing", "", 0, "pixels between nodes of the same rank")
	if err != nil {
		return err
	}
	rankSpacingFlag, err := ms.Opts.Float64("TOPO_RANK_SPACING", "rank-spacing", "", 0, "pixels between ranks")
	if err != nil {
		return err
	}
	clearanceFlag, err := ms.Opts.Float64("TOPO_CLEARANCE", "clearance", "", 0, "minimum gap between siblings before they count as colliding. 0 uses 20.")
	if err != nil {
		return err
	}
	validateFlag, err := ms.Opts.Bool("TOPO_VALIDATE", "validate", "", false, "validate the tidied layout and report issues")
	if err != nil {
		return err
	}
	fixFlag, err := ms.Opts.Bool("TOPO_FIX", "fix", "f", false, "validate the tidied layout and repair overlaps and containment violations")
	if err != nil {
		return err
	}
	normalizeFlag, err := ms.Opts.Bool("TOPO_NORMALIZE_DEVICES", "normalize-devices", "", false, "make every device a square fitted to its icon before layout")
	if err != nil {
		return err
	}
	timeoutFlag, err := ms.Opts.Int64("TOPO_TIMEOUT", "timeout", "", 120, "the maximum number of seconds a single tidy may run for")
	if err != nil {
		return err
	}
	versionFlag, err := ms.Opts.Bool("", "version", "v", false, "get the version")
	if err != nil {
		return err
	}

	err = ms.Opts.Flags.Parse(ms.Opts.Args)
	if !errors.Is(err, pflag.ErrHelp) && err != nil {
		return xmain.UsageErrorf("failed to parse flags: %v", err)
	}
	if errors.Is(err, pflag.ErrHelp) {
		help(ms)
		return nil
	}

	if *debugFlag {
		ctx = log.Leveled(ctx, slog.LevelDebug)
	}

	if len(ms.Opts.Flags.Args()) > 0 {
		switch ms.Opts.Flags.Arg(0) {
		case "validate":
			return validateCmd(ctx, ms)
		case "nudge":
			return nudgeCmd(ctx, ms, &topoavoid.Options{Clearance: *clearanceFlag})
		case "drag":
			return dragCmd(ctx, ms, &topoavoid.Options{Clearance: *clearanceFlag})
		case "version":
			if len(ms.Opts.Flags.Args()) > 1 {
				return xmain.UsageErrorf("version subcommand accepts no arguments")
			}
			fmt.Fprintln(ms.Stdout, version.Version)
			return nil
		}
	}

	if len(ms.Opts.Flags.Args()) == 0 {
		if *versionFlag {
			fmt.Fprintln(ms.Stdout, version.Version)
			return nil
		}
		help(ms)
		return nil
	} else if len(ms.Opts.Flags.Args()) >= 3 {
		return xmain.UsageErrorf("too many arguments passed")
	}

	inputPath := ms.Opts.Flags.Arg(0)
	outputPath := ms.Opts.Flags.Arg(1)
	if outputPath == "" {
		if inputPath == "-" {
			outputPath = "-"
		} else {
			outputPath = renameExt(inputPath, ".tidy.json")
		}
	}
	if inputPath != "-" {
		inputPath = ms.AbsPath(inputPath)
	}
	if outputPath != "-" {
		outputPath = ms.AbsPath(outputPath)
	}

	cfg := &Config{}
	if *configFlag != "" {
		cfg, err = loadConfig(ms, ms.AbsPath(*configFlag))
		if err != nil {
			return err
		}
	}
	overrideString(&cfg.Strategy, *strategyFlag)
	overrideString(&cfg.Direction, *directionFlag)
	overrideString(&cfg.Tier, *tierFlag)
	overrideFloat(&cfg.Padding, *paddingFlag)
	overrideFloat(&cfg.NodeSpacing, *nodeSpacingFlag)
	overrideFloat(&cfg.RankSpacing, *rankSpacingFlag)
	overrideFloat(&cfg.Clearance, *clearanceFlag)
	cfg.Validate = cfg.Validate || *validateFlag
	cfg.AutoFix = cfg.AutoFix || *fixFlag
	cfg.NormalizeDevices = cfg.NormalizeDevices || *normalizeFlag

	opts, err := cfg.Options()
	if err != nil {
		return xmain.UsageErrorf("%v", err)
	}

	timeout := time.Duration(*timeoutFlag) * time.Second
	if s, ok := env.Timeout(); ok && !ms.Opts.Flags.Changed("timeout") {
		timeout = time.Duration(s) * time.Second
	}

	t := &tidyCmd{
		ms:         ms,
		opts:       opts,
		inputPath:  inputPath,
		outputPath: outputPath,
		timeout:    timeout,
	}

	if *watchFlag {
		if inputPath == "-" {
			return xmain.UsageErrorf("-w[atch] cannot be combined with reading input from stdin")
		}
		if outputPath == "-" {
			return xmain.UsageErrorf("-w[atch] cannot be combined with writing output to stdout")
		}
		w, err := newWatcher(ctx, ms, t)
		if err != nil {
			return err
		}
		return w.run()
	}

	res, err := t.run(ctx)
	if err != nil {
		return err
	}
	t.report(res)
	return nil
}

type tidyCmd struct {
	ms         *xmain.State
	opts       *topotidy.Options
	inputPath  string
	outputPath string
	timeout    time.Duration
}

func (t *tidyCmd) run(ctx context.Context) (_ *topotidy.Result, err error) {
	defer xdefer.Errorf(&err, "failed to tidy %s", t.ms.HumanPath(t.inputPath))

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	input, err := t.ms.ReadPath(t.inputPath)
	if err != nil {
		return nil, err
	}
	g, err := topograph.ParseDiagram(input)
	if err != nil {
		return nil, err
	}

	// Each run needs its own cache since dimensions are keyed by node id.
	opts := *t.opts
	opts.Dimensions = nil
	res, err := topotidy.Tidy(ctx, g, &opts)
	if err != nil {
		return nil, err
	}

	out, err := json.MarshalIndent(res.Graph, "", "  ")
	if err != nil {
		return nil, err
	}
	out = append(out, '\n')
	err = t.ms.WritePath(t.outputPath, out)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *tidyCmd) report(res *topotidy.Result) {
	st := res.Stats
	t.ms.Log.Info.Printf("%s strategy: %d nodes in %d boundaries over %d passes (%v)",
		st.Strategy, st.NodesProcessed, st.BoundariesProcessed, st.Passes, st.Duration.Round(time.Millisecond))
	if st.FellBack {
		t.ms.Log.Warn.Printf("nested layout failed, fell back to legacy")
	}
	if len(st.FailedBoundaries) > 0 {
		t.ms.Log.Warn.Printf("boundaries left as they were: %s", strings.Join(st.FailedBoundaries, ", "))
	}
	if len(st.MissingEdges) > 0 {
		t.ms.Log.Warn.Printf("edges with missing endpoints: %s", strings.Join(st.MissingEdges, ", "))
	}
	if st.Quality != nil {
		t.ms.Log.Info.Printf("quality %.2f with %d collisions", st.Quality.Score, st.Quality.CollisionCount)
	}
	if res.Validation != nil {
		logValidation(t.ms, res.Validation)
		for _, f := range res.Fixes {
			t.ms.Log.Info.Printf("moved %s from %s to %s: %s", f.Node, f.From.ToString(), f.To.ToString(), f.Reason)
		}
	}
	if t.outputPath != "-" {
		t.ms.Log.Success.Printf("successfully tidied %s to %s", t.ms.HumanPath(t.inputPath), t.ms.HumanPath(t.outputPath))
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overrideFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// newExt must include leading .
func renameExt(fp string, newExt string) string {
	ext := filepath.Ext(fp)
	if ext == "" {
		return fp + newExt
	}
	return strings.TrimSuffix(fp, ext) + newExt
}

func help(ms *xmain.State) {
	fmt.Fprintf(ms.Stdout, `%[1]s %[2]s
Usage:
  %[1]s [--strategy=legacy] [--direction=TB] [--tier=comfortable] file.json [out.json]
  %[1]s validate file.json
  %[1]s nudge file.json [out.json]
  %[1]s drag file.json node x y
  %[1]s version

%[1]s lays out a network topology diagram: boundaries are sized and arranged
bottom-up, overlaps are resolved and edges are assigned ports and channels.
The output defaults to file.tidy.json.

Use - to have %[1]s read from stdin or write to stdout.

Flags:
%[3]s

Subcommands:
  %[1]s validate file.json - Reports overlaps, containment and edge issues without moving anything
  %[1]s nudge file.json - Pushes overlapping siblings apart, moving each at most 50px
  %[1]s drag file.json node x y - Prints where node should land if dropped at x,y, or null
  %[1]s version - Prints the version
`, filepath.Base(ms.Name), version.Version, ms.Opts.Defaults())
}
