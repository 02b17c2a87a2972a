package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bemekit/internal/experiment"
	"bemekit/internal/model"
	"bemekit/internal/version"
	"bemekit/pkg/bemekit"
)

func (a *app) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <experiment-file|directory>",
		Short: "Load experiments and print a per-island summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.clientFor(cmd.Context())
			if err != nil {
				return err
			}
			exps, err := client.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sums := make([]model.ExperimentSummary, 0, len(exps))
			for _, exp := range exps {
				sums = append(sums, exp.Summary())
			}
			return a.printSummaries(sums)
		},
	}
}

func (a *app) releaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <version>",
		Short: "Resolve a software version (vMAJOR.MINOR.PATCH or YYMMDD) to a simulator release",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rel, err := version.Release(args[0])
			if err != nil {
				return err
			}
			if a.cfg.JSON {
				return a.printJSON(map[string]string{"version": args[0], "release": rel})
			}
			fmt.Fprintln(a.out, rel)
			return nil
		},
	}
}

const (
	viewGenerations  = "generations"
	viewTimestamps   = "timestamps"
	viewFevals       = "fevals"
	viewIDs          = "ids"
	viewNadirs       = "nadirs"
	viewFinal        = "final"
	viewHypervolumes = "hypervolumes"
)

type viewRow struct {
	Island     string    `json:"island"`
	Report     *int      `json:"report,omitempty"`
	Generation *int      `json:"generation,omitempty"`
	Individual *int      `json:"individual,omitempty"`
	Value      any       `json:"value"`
	Vector     []float64 `json:"vector,omitempty"`
}

func intp(v int) *int { return &v }

func (a *app) viewsCmd() *cobra.Command {
	var view string
	cmd := &cobra.Command{
		Use:   "views <experiment-file>",
		Short: "Print a derived view of an experiment",
		Long: "Views: generations, timestamps, fevals, ids, nadirs, final (last report fitness\n" +
			"and decision vectors) and hypervolumes (against the nadir points).",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.clientFor(cmd.Context())
			if err != nil {
				return err
			}
			exp, err := client.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows, err := viewRows(exp, view)
			if err != nil {
				return err
			}
			return a.printViewRows(rows)
		},
	}
	cmd.Flags().StringVar(&view, "view", viewGenerations, "view to print")
	return cmd
}

func viewRows(exp *experiment.Experiment, view string) ([]viewRow, error) {
	var rows []viewRow
	switch view {
	case viewGenerations:
		for k, g := range exp.Generations().All() {
			rows = append(rows, viewRow{Island: k.Island, Report: intp(k.Report), Generation: intp(g), Value: g})
		}
	case viewTimestamps:
		gens := exp.Generations()
		for k, ts := range exp.Timestamps().All() {
			g, _ := gens.Get(k)
			rows = append(rows, viewRow{Island: k.Island, Report: intp(k.Report), Generation: intp(g), Value: ts.Format(time.RFC3339Nano)})
		}
	case viewFevals:
		gens := exp.Generations()
		for k, n := range exp.FitnessEvaluations().All() {
			g, _ := gens.Get(k)
			rows = append(rows, viewRow{Island: k.Island, Report: intp(k.Report), Generation: intp(g), Value: n})
		}
	case viewIDs:
		for k, id := range exp.IDs().All() {
			rows = append(rows, viewRow{Island: k.Island, Report: intp(k.Report), Individual: intp(k.Individual), Value: id})
		}
	case viewNadirs:
		for isl, n := range exp.NadirPoints().All() {
			rows = append(rows, viewRow{Island: isl, Vector: n})
		}
	case viewFinal:
		dvs := exp.FinalDecisionVectors()
		for k, fv := range exp.FinalFitnessVectors().All() {
			dv, _ := dvs.Get(k)
			rows = append(rows, viewRow{Island: k.Island, Individual: intp(k.Individual), Value: dv, Vector: fv})
		}
	case viewHypervolumes:
		hv, err := exp.Hypervolumes(nil)
		if err != nil {
			return nil, err
		}
		for k, v := range hv.All() {
			rows = append(rows, viewRow{Island: k.Island, Generation: intp(k.Generation), Value: v})
		}
	default:
		return nil, fmt.Errorf("unknown view %q", view)
	}
	return rows, nil
}

func (a *app) printViewRows(rows []viewRow) error {
	if a.cfg.JSON {
		if rows == nil {
			rows = []viewRow{}
		}
		return a.printJSON(rows)
	}
	t := a.table("ISLAND", "REPORT", "GENERATION", "INDIVIDUAL", "VALUE", "VECTOR")
	opt := func(p *int) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	}
	for _, r := range rows {
		val := "-"
		switch v := r.Value.(type) {
		case nil:
		case []float64:
			val = formatVector(v)
		default:
			val = fmt.Sprint(v)
		}
		vec := "-"
		if r.Vector != nil {
			vec = formatVector(r.Vector)
		}
		t.row(r.Island, opt(r.Report), opt(r.Generation), opt(r.Individual), val, vec)
	}
	return t.flush()
}

// individualFlags are shared by the individual and request commands.
type individualFlags struct {
	island     string
	generation int
	report     int
	indices    []int
}

func (f *individualFlags) register(cmd *cobra.Command, indexUsage string) {
	cmd.Flags().StringVar(&f.island, "island", "", "island name")
	cmd.Flags().IntVar(&f.generation, "generation", 0, "absolute generation number")
	cmd.Flags().IntVar(&f.report, "report", 0, "report index")
	cmd.Flags().IntSliceVar(&f.indices, "index", []int{0}, indexUsage)
	_ = cmd.MarkFlagRequired("island")
	cmd.MarkFlagsMutuallyExclusive("generation", "report")
	cmd.MarkFlagsOneRequired("generation", "report")
}

func (f *individualFlags) ref(cmd *cobra.Command) experiment.GenerationRef {
	if cmd.Flags().Changed("generation") {
		return experiment.ByGeneration(f.generation)
	}
	return experiment.ByReport(f.report)
}

func (a *app) individualCmd() *cobra.Command {
	var f individualFlags
	cmd := &cobra.Command{
		Use:   "individual <experiment-file>",
		Short: "Print one individual of an island",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(f.indices) != 1 {
				return fmt.Errorf("individual takes exactly one --index")
			}
			client, err := a.clientFor(cmd.Context())
			if err != nil {
				return err
			}
			exp, err := client.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ind, err := exp.Individual(f.island, f.indices[0], f.ref(cmd))
			if err != nil {
				return err
			}
			if a.cfg.JSON {
				return a.printJSON(ind)
			}
			fmt.Fprintf(a.out, "id: %d\ndecision vector: %s\nfitness vector: %s\n", ind.ID, formatVector(ind.DecisionVector), formatVector(ind.FitnessVector))
			return nil
		},
	}
	f.register(cmd, "individual index within the report")
	return cmd
}

func (a *app) requestCmd() *cobra.Command {
	var (
		f      individualFlags
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "request <experiment-file>",
		Short: "Write re-simulation requests for individuals of one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.clientFor(cmd.Context())
			if err != nil {
				return err
			}
			exp, err := client.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			refs := make([]bemekit.IndividualRef, 0, len(f.indices))
			for _, idx := range f.indices {
				refs = append(refs, bemekit.IndividualRef{Island: f.island, Generation: f.ref(cmd), Index: idx})
			}
			paths, err := client.WriteRequests(exp, refs, outDir)
			if err != nil {
				return err
			}
			return a.printPaths(paths)
		},
	}
	f.register(cmd, "individual indices within the report, comma separated or repeated")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to --request-dir)")
	return cmd
}

func (a *app) printPaths(paths []string) error {
	if a.cfg.JSON {
		return a.printJSON(paths)
	}
	for _, p := range paths {
		fmt.Fprintln(a.out, p)
	}
	return nil
}

func (a *app) convertCmd() *cobra.Command {
	var target, outDir string
	cmd := &cobra.Command{
		Use:   "convert <request-file>",
		Short: "Convert a re-simulation request to another formulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.clientFor(cmd.Context())
			if err != nil {
				return err
			}
			path, err := client.ConvertFile(args[0], target, outDir)
			if err != nil {
				return err
			}
			return a.printPaths([]string{path})
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "target formulation tag (f1..f5, hyd_rel, mec_rel, fire_rel)")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to --request-dir)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *app) simulateCmd() *cobra.Command {
	var (
		flags      []string
		saveInputs string
	)
	cmd := &cobra.Command{
		Use:   "simulate <request-file>",
		Short: "Evaluate a request with the simulator release matching its version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.clientFor(cmd.Context())
			if err != nil {
				return err
			}
			req, err := client.ReadRequest(args[0])
			if err != nil {
				return err
			}
			if saveInputs != "" {
				paths, err := client.SaveInputs(cmd.Context(), req, saveInputs)
				if err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintln(a.out, p)
				}
				return nil
			}
			fv, err := client.Simulate(cmd.Context(), req, flags...)
			if err != nil {
				return err
			}
			if a.cfg.JSON {
				return a.printJSON(map[string]any{"id": req.ID, "fitness_vector": fv})
			}
			fmt.Fprintf(a.out, "%d %s\n", req.ID, formatVector(fv))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&flags, "sim-flag", nil, "extra simulator flag, repeatable")
	cmd.Flags().StringVar(&saveInputs, "save-inputs", "", "export the request's network input files to this directory instead of evaluating it")
	return cmd
}

func (a *app) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the catalog of indexed experiments",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "index <experiment-file|directory>",
			Short: "Load experiments and record their summaries",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.clientFor(cmd.Context())
				if err != nil {
					return err
				}
				sums, err := client.Index(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printSummaries(sums)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List catalogued experiments",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := a.clientFor(cmd.Context())
				if err != nil {
					return err
				}
				sums, err := client.Catalog(cmd.Context())
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					if sums == nil {
						sums = []model.ExperimentSummary{}
					}
					return a.printJSON(sums)
				}
				t := a.table("NAME", "ISLANDS", "VERSION", "INDEXED", "PATH")
				for _, s := range sums {
					t.row(s.Name, len(s.Islands), s.SoftwareVersion, s.IndexedAt.Format(time.RFC3339), s.Path)
				}
				return t.flush()
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print the summary of a catalogued experiment",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.clientFor(cmd.Context())
				if err != nil {
					return err
				}
				sum, err := client.CatalogEntry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printSummaries([]model.ExperimentSummary{sum})
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Remove an experiment from the catalog",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.clientFor(cmd.Context())
				if err != nil {
					return err
				}
				if err := client.Forget(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}
