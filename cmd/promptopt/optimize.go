package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/promptopt-client/internal/data"
	"github.com/target/promptopt-client/internal/domain/model"
	"github.com/target/promptopt-client/internal/util"
)

type optimizeOptions struct {
	Type      string
	Context   string
	Evaluate  bool
	FromDraft bool
}

type historyOptions struct {
	Limit   int
	Skip    int
	Type    string
	Search  string
	Since   string
}

func runOptimize(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "optimize")
	var opts optimizeOptions
	fs.StringVar(&opts.Type, "type", "", "Optimization type: general, code, writing or analysis")
	fs.StringVar(&opts.Context, "context", "", "Optional context for the optimizer")
	fs.BoolVar(&opts.Evaluate, "evaluate", false, "Also run a detailed quality evaluation of the original prompt")
	fs.BoolVar(&opts.FromDraft, "from-draft", false, "Use the saved draft as the request")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !cc.App.Session.State().IsAuthenticated {
		return errNotLoggedIn
	}

	req, err := buildRequest(cc, opts, fs.Args())
	if err != nil {
		return err
	}

	var (
		res  model.OptimizationResult
		eval *model.QualityEvaluation
	)
	g, ctx := errgroup.WithContext(cc.Ctx)
	g.Go(func() error {
		var optErr error
		res, optErr = cc.App.Optimizer.Optimize(ctx, req)
		return optErr
	})
	if opts.Evaluate {
		g.Go(func() error {
			e, evalErr := cc.App.Optimizer.Evaluate(ctx, req.OriginalPrompt)
			if evalErr != nil {
				return evalErr
			}
			eval = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.FromDraft {
		if err := cc.App.Drafts.Discard(cc.Ctx); err != nil {
			cc.Logger.WarnContext(cc.Ctx, "discard draft after optimize", "error", err)
		}
	}

	if err := printResult(cc.Out, res); err != nil {
		return err
	}
	if eval != nil {
		return printEvaluation(cc.Out, *eval)
	}
	return nil
}

func buildRequest(cc *commandContext, opts optimizeOptions, args []string) (model.OptimizationRequest, error) {
	if opts.FromDraft {
		d, ok, err := cc.App.Drafts.Load(cc.Ctx)
		if err != nil {
			return model.OptimizationRequest{}, fmt.Errorf("load draft: %w", err)
		}
		if !ok {
			return model.OptimizationRequest{}, usageErrorf("no saved draft")
		}
		return d.Request(), nil
	}

	typ, err := model.ParseOptimizationType(opts.Type)
	if err != nil {
		return model.OptimizationRequest{}, usageErrorf("%v", err)
	}
	prompt, err := promptText(cc, args)
	if err != nil {
		return model.OptimizationRequest{}, err
	}
	return model.OptimizationRequest{
		OriginalPrompt:   prompt,
		OptimizationType: typ,
		UserContext:      strings.TrimSpace(opts.Context),
	}, nil
}

func runEvaluate(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "evaluate")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !cc.App.Session.State().IsAuthenticated {
		return errNotLoggedIn
	}
	prompt, err := promptText(cc, fs.Args())
	if err != nil {
		return err
	}
	eval, err := cc.App.Optimizer.Evaluate(cc.Ctx, prompt)
	if err != nil {
		return err
	}
	return printEvaluation(cc.Out, eval)
}

func runHistory(cc *commandContext, args []string) error {
	fs := newFlagSet(cc, "history")
	var opts historyOptions
	fs.IntVar(&opts.Limit, "limit", model.DefaultHistoryLimit, "Maximum number of entries")
	fs.IntVar(&opts.Skip, "skip", 0, "Number of entries to skip")
	fs.StringVar(&opts.Type, "type", "", "Filter by optimization type")
	fs.StringVar(&opts.Search, "search", "", "Filter by keyword")
	fs.StringVar(&opts.Since, "since", "", "Only show entries newer than this duration (e.g. 72h)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !cc.App.Session.State().IsAuthenticated {
		return errNotLoggedIn
	}

	q := model.HistoryQuery{Skip: opts.Skip, Limit: opts.Limit, SearchKeyword: opts.Search}
	if opts.Type != "" {
		typ, err := model.ParseOptimizationType(opts.Type)
		if err != nil {
			return usageErrorf("%v", err)
		}
		q.OptimizationType = &typ
	}
	if opts.Since != "" {
		d, err := time.ParseDuration(opts.Since)
		if err != nil {
			return usageErrorf("invalid --since: %v", err)
		}
		start := time.Now().Add(-d)
		q.StartDate = &start
	}

	page, err := cc.App.Optimizer.History(cc.Ctx, q)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cc.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tType\tScore\tCreated\tPrompt"); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}
	for _, item := range page.Items {
		created := "-"
		if !item.CreatedAt.IsZero() {
			created = item.CreatedAt.Local().Format(time.DateTime)
		}
		if err := writef(w, "%s\t%s\t%.1f → %.1f\t%s\t%s\n",
			item.ID, item.OptimizationType, item.QualityScoreBefore, item.QualityScoreAfter,
			created, truncate(item.OriginalPrompt, 48)); err != nil {
			return fmt.Errorf("write history row %q: %w", item.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return writef(cc.Out, "\n%d of %d shown\n", len(page.Items), page.Total)
}

func runHealth(cc *commandContext, args []string) error {
	if err := parseFlags(newFlagSet(cc, "health"), args); err != nil {
		return err
	}
	h, err := cc.App.Optimizer.Health(cc.Ctx)
	if err != nil {
		return err
	}
	if err := writef(cc.Out, "Backend %s: %s", cc.App.Client.BaseURL(), h.Status); err != nil {
		return err
	}
	if h.Version != "" {
		if err := writef(cc.Out, " (version %s)", h.Version); err != nil {
			return err
		}
	}
	if err := writeln(cc.Out); err != nil {
		return err
	}
	if !h.Healthy() {
		return fmt.Errorf("backend reports status %q", h.Status)
	}
	return nil
}

func runDraft(cc *commandContext, args []string) error {
	if len(args) == 0 {
		return usageErrorf("draft requires a subcommand: show, save or discard")
	}
	switch sub := args[0]; sub {
	case "show":
		d, ok, err := cc.App.Drafts.Load(cc.Ctx)
		if err != nil {
			return fmt.Errorf("load draft: %w", err)
		}
		if !ok {
			return writeln(cc.Out, "No saved draft")
		}
		return printDraft(cc.Out, d)
	case "save":
		fs := newFlagSet(cc, "draft save")
		var opts optimizeOptions
		fs.StringVar(&opts.Type, "type", "", "Optimization type: general, code, writing or analysis")
		fs.StringVar(&opts.Context, "context", "", "Optional context for the optimizer")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		req, err := buildRequest(cc, opts, fs.Args())
		if err != nil {
			return err
		}
		cc.App.Drafts.Update(data.Draft{
			Prompt:           req.OriginalPrompt,
			OptimizationType: req.OptimizationType,
			UserContext:      req.UserContext,
		})
		if err := cc.App.Drafts.Flush(cc.Ctx); err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
		return writeln(cc.Out, "Draft saved")
	case "discard":
		if err := cc.App.Drafts.Discard(cc.Ctx); err != nil {
			return fmt.Errorf("discard draft: %w", err)
		}
		return writeln(cc.Out, "Draft discarded")
	default:
		return usageErrorf("unknown draft subcommand %q", sub)
	}
}

func printResult(w io.Writer, res model.OptimizationResult) error {
	if err := writef(w, "%s\n\n", res.OptimizedPrompt); err != nil {
		return fmt.Errorf("write optimized prompt: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "Quality\t%.1f → %.1f (%+.1f)\n",
		res.QualityScoreBefore, res.QualityScoreAfter, res.ScoreDelta()); err != nil {
		return fmt.Errorf("write scores: %w", err)
	}
	if err := writef(tw, "Type\t%s\n", res.OptimizationType); err != nil {
		return fmt.Errorf("write type: %w", err)
	}
	if res.ProcessingTime > 0 {
		if err := writef(tw, "Processed in\t%s\n", util.FormatProcessingDuration(util.Seconds(res.ProcessingTime))); err != nil {
			return fmt.Errorf("write processing time: %w", err)
		}
	}
	if res.TokenUsage != nil {
		if err := writef(tw, "Tokens\t%d (est. $%.4f)\n", res.TokenUsage.TotalTokens, res.TokenUsage.CostEstimate); err != nil {
			return fmt.Errorf("write token usage: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(res.Improvements) == 0 {
		return nil
	}
	if err := writeln(w, "\nImprovements:"); err != nil {
		return err
	}
	for _, imp := range res.Improvements {
		if err := writef(w, "  - [%s] %s\n", imp.Type, imp.Description); err != nil {
			return fmt.Errorf("write improvement: %w", err)
		}
	}
	return nil
}

func printEvaluation(w io.Writer, eval model.QualityEvaluation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		label string
		score float64
	}{
		{"Overall", eval.OverallScore},
		{"Clarity", eval.DetailedScores.Clarity},
		{"Completeness", eval.DetailedScores.Completeness},
		{"Structure", eval.DetailedScores.Structure},
		{"Specificity", eval.DetailedScores.Specificity},
		{"Actionability", eval.DetailedScores.Actionability},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%.1f\n", row.label, row.score); err != nil {
			return fmt.Errorf("write %s score: %w", strings.ToLower(row.label), err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, section := range []struct {
		title string
		items []string
	}{{"Issues", eval.Issues}, {"Suggestions", eval.Suggestions}} {
		if len(section.items) == 0 {
			continue
		}
		if err := writef(w, "\n%s:\n", section.title); err != nil {
			return err
		}
		for _, item := range section.items {
			if err := writef(w, "  - %s\n", item); err != nil {
				return err
			}
		}
	}
	return nil
}

func printDraft(w io.Writer, d data.Draft) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	req := d.Request()
	if err := writef(tw, "Type\t%s\n", req.OptimizationType); err != nil {
		return err
	}
	if req.UserContext != "" {
		if err := writef(tw, "Context\t%s\n", req.UserContext); err != nil {
			return err
		}
	}
	if !d.UpdatedAt.IsZero() {
		if err := writef(tw, "Saved\t%s\n", d.UpdatedAt.Local().Format(time.DateTime)); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\n%s\n", d.Prompt)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
