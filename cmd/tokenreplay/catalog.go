package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/Mr-Dark-debug/tokenreplay/internal/catalog"
	"github.com/Mr-Dark-debug/tokenreplay/internal/render"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/timeutil"
)

func (c *ImportCmd) Run(a *app) error {
	conv, err := os.ReadFile(c.Conversation)
	if err != nil {
		return err
	}
	metrics, err := os.ReadFile(c.Metrics)
	if err != nil {
		return err
	}

	store, err := a.catalog()
	if err != nil {
		return err
	}
	t, err := store.Insert(context.Background(), c.Name, conv, metrics)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Imported %s (%s, %d turns, %s)\n",
		t.ID, t.Name, t.Turns, render.FormatCost(t.TotalCost))
	return nil
}

func (c *ListCmd) Run(a *app) error {
	store, err := a.catalog()
	if err != nil {
		return err
	}
	list, err := store.List(context.Background(), catalog.Filter{Name: c.Name, Limit: c.Limit})
	if err != nil {
		return err
	}

	if c.Format == "json" {
		return writeJSON(a, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No transcripts.")
		return nil
	}
	fmt.Fprintf(a.out, "%-36s  %-24s  %5s  %10s  %s\n", "ID", "NAME", "TURNS", "COST", "CREATED")
	for _, t := range list {
		created := timeutil.FromNano(t.CreatedAt)
		fmt.Fprintf(a.out, "%-36s  %-24s  %5d  %10s  %s (%s)\n",
			t.ID, t.Name, t.Turns, render.FormatCost(t.TotalCost),
			timeutil.FormatTimestamp(t.CreatedAt), humanize.Time(created))
	}
	return nil
}

func (c *SearchCmd) Run(a *app) error {
	store, err := a.catalog()
	if err != nil {
		return err
	}
	hits, err := store.SearchTurns(context.Background(), c.Query, c.Limit)
	if err != nil {
		return err
	}

	if c.Format == "json" {
		return writeJSON(a, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintf(a.out, "No turns match %q.\n", c.Query)
		return nil
	}
	for _, h := range hits {
		kind := ""
		if h.ContextType != nil {
			kind = " [" + *h.ContextType + "]"
		}
		fmt.Fprintf(a.out, "%s  %s  turn %d%s  %s\n", h.TranscriptID, h.Name, h.Turn, kind, render.FormatCost(h.Cost))
		fmt.Fprintf(a.out, "  user:  %s\n  agent: %s\n", h.UserPrompt, h.AgentResponse)
	}
	return nil
}

func (c *DeleteCmd) Run(a *app) error {
	store, err := a.catalog()
	if err != nil {
		return err
	}
	if err := store.Delete(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", c.ID)
	return nil
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
