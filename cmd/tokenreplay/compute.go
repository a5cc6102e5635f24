package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Mr-Dark-debug/tokenreplay/internal/tokenomics"
)

func (c *ComputeCmd) Run(a *app) error {
	pricing, err := c.pricing(a)
	if err != nil {
		return err
	}

	ld, err := a.loader(c.Conversation)
	if err != nil {
		return err
	}
	conv, err := ld.LoadConversation(context.Background(), c.Conversation)
	if err != nil {
		return err
	}

	metrics, err := tokenomics.Compute(conv, pricing, c.encoder(a))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	data = append(data, '\n')

	if c.Output == "" {
		_, err = a.out.Write(data)
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.Output, err)
	}
	a.log.Infow("metrics written", "path", c.Output,
		"turns", len(metrics.Metrics), "total_cost", metrics.TotalCost)
	return nil
}

// pricing starts from the config, swaps in a preset when --model names
// one and applies the context size override last.
func (c *ComputeCmd) pricing(a *app) (tokenomics.Pricing, error) {
	p := tokenomics.Pricing{
		ContextSize: a.cfg.Pricing.ContextSize,
		InputCost:   a.cfg.Pricing.InputCost,
		OutputCost:  a.cfg.Pricing.OutputCost,
	}
	if c.Model != "" {
		preset, err := tokenomics.Preset(c.Model)
		if err != nil {
			return tokenomics.Pricing{}, err
		}
		p = preset
	}
	if c.ContextSize > 0 {
		p.ContextSize = c.ContextSize
	}
	return p, nil
}

func (c *ComputeCmd) encoder(a *app) tokenomics.Encoder {
	if c.Estimate {
		return tokenomics.Estimate{}
	}
	encoding := c.Encoding
	if encoding == "" {
		encoding = a.cfg.Pricing.Encoding
	}
	enc, err := tokenomics.NewTiktoken(encoding)
	if err != nil {
		a.log.Warnw("tokenizer unavailable, estimating token counts", "encoding", encoding, "error", err)
		return tokenomics.Estimate{}
	}
	return enc
}
