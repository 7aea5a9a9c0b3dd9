package topocli

import (
	"context"
	"fmt"

	"oss.terrastruct.com/util-go/xdefer"
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/topo/lib/log"
	"oss.terrastruct.com/topo/topolayouts/topovalidate"
)

func validateCmd(ctx context.Context, ms *xmain.State) (err error) {
	defer xdefer.Errorf(&err, "failed to validate")

	ms.Opts = xmain.NewOpts(ms.Env, ms.Opts.Flags.Args()[1:])
	if len(ms.Opts.Args) == 0 {
		return xmain.UsageErrorf("validate must be passed an input file to be validated")
	}

	inputPath := ms.Opts.Args[0]

	g, err := readDiagram(ms, inputPath)
	if err != nil {
		return err
	}

	res := topovalidate.Validate(g, nil, nil)
	log.Debug(ctx, "validated layout")
	logValidation(ms, res)
	if !res.Passed {
		return fmt.Errorf("%d layout issues found", res.IssueCount())
	}
	ms.Log.Success.Printf("%s is valid", ms.HumanPath(inputPath))
	return nil
}

func logValidation(ms *xmain.State, res *topovalidate.Result) {
	for _, ov := range res.Overlaps {
		ms.Log.Warn.Printf("%s overlaps %s by %.0f square pixels", ov.NodeA, ov.NodeB, ov.OverlapArea)
	}
	for _, ci := range res.Containment {
		ms.Log.Warn.Printf("%s violates %s of %s by %.0f pixels", ci.Node, ci.Kind, ci.Parent, ci.Violation)
	}
	for _, ei := range res.EdgeIssues {
		ms.Log.Warn.Printf("edge %s is %s: %s", ei.Edge, ei.Kind, ei.Detail)
	}
}
