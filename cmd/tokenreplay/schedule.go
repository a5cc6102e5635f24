package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mr-Dark-debug/tokenreplay/internal/schedule"
	"github.com/Mr-Dark-debug/tokenreplay/pkg/timeutil"
)

type plannedAction struct {
	Offset time.Duration `json:"offset"`
	Kind   string        `json:"kind"`
	Region string        `json:"region"`
	Turn   *int          `json:"turn,omitempty"`
}

func (c *ScheduleCmd) Run(a *app) error {
	convRef, metricsRef := c.refs(a.cfg)
	ld, err := a.loader(convRef, metricsRef)
	if err != nil {
		return err
	}
	b, err := ld.Load(context.Background(), convRef, metricsRef)
	if err != nil {
		return err
	}

	delay := c.Delay
	if delay <= 0 {
		delay = a.cfg.Replay.Delay
	}
	// Nothing runs the effects, so no controller is needed.
	actions := schedule.Schedule(b.Conversation, b.Metrics, nil, schedule.WithDelay(delay))

	if c.Format == "json" {
		planned := make([]plannedAction, len(actions))
		for i, act := range actions {
			planned[i] = plannedAction{Offset: act.DueAt, Kind: act.Kind.String(), Region: act.Region.String()}
			if act.Turn >= 0 {
				turn := act.Turn
				planned[i].Turn = &turn
			}
		}
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(planned)
	}

	for _, act := range actions {
		turn := "-"
		if act.Turn >= 0 {
			turn = fmt.Sprint(act.Turn)
		}
		fmt.Fprintf(a.out, "%s  %-20s %-13s %s\n",
			timeutil.FormatOffset(act.DueAt), act.Kind, act.Region, turn)
	}
	fmt.Fprintf(a.out, "\n%d reveals over %s\n", len(actions), timeutil.FormatDuration(schedule.End(actions)))
	return nil
}
