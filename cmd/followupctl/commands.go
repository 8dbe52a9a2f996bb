package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dhima/followup-engine/internal/app"
	"github.com/dhima/followup-engine/internal/models"
)

// Globals are flags shared by every command.
type Globals struct {
	Org string `short:"o" required:"" env:"FOLLOWUP_ORG_ID" help:"Organization the command is scoped to."`
}

// CLI is the followupctl command tree.
type CLI struct {
	Globals

	Due        DueCmd        `cmd:"" help:"List pending follow-ups that are due now."`
	Get        GetCmd        `cmd:"" help:"Show one follow-up."`
	Execute    ExecuteCmd    `cmd:"" help:"Evaluate and send one follow-up."`
	Batch      BatchCmd      `cmd:"" help:"Execute due follow-ups in bounded chunks."`
	Cancel     CancelCmd     `cmd:"" help:"Cancel a sequence for one contact."`
	Reschedule RescheduleCmd `cmd:"" help:"Move a follow-up to a new time."`
	Summary    SummaryCmd    `cmd:"" help:"Show sequence or contact progress."`
}

type DueCmd struct {
	Limit int `short:"n" default:"50" help:"Maximum number of follow-ups to list."`
}

func (c *DueCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	due, err := a.Sequences.ListDue(ctx, g.Org, c.Limit)
	if err != nil {
		return err
	}
	return printJSON(out, due)
}

type GetCmd struct {
	ID string `arg:"" help:"Follow-up id."`
}

func (c *GetCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	fu, err := a.Sequences.GetFollowUp(ctx, g.Org, c.ID)
	if err != nil {
		return err
	}
	return printJSON(out, fu)
}

type ExecuteCmd struct {
	ID     string `arg:"" help:"Follow-up id."`
	DryRun bool   `help:"Evaluate and render without sending or writing."`
}

func (c *ExecuteCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	result, err := a.Engine.Execute(ctx, c.ID, g.Org, c.DryRun)
	if err != nil {
		return err
	}
	return printJSON(out, result)
}

type BatchCmd struct {
	Limit int `short:"n" help:"Maximum follow-ups to claim; zero uses BATCH_LIMIT."`
}

func (c *BatchCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	result, err := a.Engine.ExecuteBatch(ctx, g.Org, c.Limit)
	if err != nil {
		return err
	}
	return printJSON(out, result)
}

type CancelCmd struct {
	Sequence string `arg:"" help:"Sequence id."`
	Contact  string `arg:"" help:"Contact id."`
	Reason   string `help:"Outcome recorded on canceled follow-ups."`
}

func (c *CancelCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	resp, err := a.Sequences.CancelSequenceForContact(ctx, g.Org, c.Sequence, models.CancelSequenceRequest{
		ContactID: c.Contact,
		Reason:    c.Reason,
	})
	if err != nil {
		return err
	}
	return printJSON(out, resp)
}

type RescheduleCmd struct {
	ID string `arg:"" help:"Follow-up id."`
	At string `required:"" help:"New send time, RFC 3339."`
}

func (c *RescheduleCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	at, err := time.Parse(time.RFC3339, c.At)
	if err != nil {
		return fmt.Errorf("--at: %w", err)
	}
	fu, err := a.Sequences.Reschedule(ctx, g.Org, c.ID, at)
	if err != nil {
		return err
	}
	return printJSON(out, fu)
}

type SummaryCmd struct {
	Sequence SequenceSummaryCmd `cmd:"" help:"Status counts for one sequence."`
	Contact  ContactSummaryCmd  `cmd:"" help:"Progress of one contact across sequences."`
}

type SequenceSummaryCmd struct {
	ID string `arg:"" help:"Sequence id."`
}

func (c *SequenceSummaryCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	summary, err := a.Sequences.SequenceSummary(ctx, g.Org, c.ID)
	if err != nil {
		return err
	}
	return printJSON(out, summary)
}

type ContactSummaryCmd struct {
	ID string `arg:"" help:"Contact id."`
}

func (c *ContactSummaryCmd) Run(ctx context.Context, g *Globals, a *app.App, out io.Writer) error {
	summary, err := a.Sequences.ContactSummary(ctx, g.Org, c.ID)
	if err != nil {
		return err
	}
	return printJSON(out, summary)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
