package main

import (
	"context"
	"fmt"

	"github.com/Mr-Dark-debug/tokenreplay/internal/analysis"
)

func (c *AnalyzeCmd) Run(a *app) error {
	convRef, metricsRef := c.refs(a.cfg)
	ld, err := a.loader(convRef, metricsRef)
	if err != nil {
		return err
	}
	b, err := ld.Load(context.Background(), convRef, metricsRef)
	if err != nil {
		return err
	}

	analyzer := analysis.NewAnalyzer(b.Conversation, b.Metrics, a.cfg.Pricing.ContextSize, a.cfg.Replay.Delay)
	report := analyzer.FullAnalysis(convRef)

	if c.Format == "json" {
		return writeJSON(a, report)
	}
	fmt.Fprint(a.out, analysis.FormatReport(report))
	return nil
}
