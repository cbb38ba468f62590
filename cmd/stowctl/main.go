// stowctl is an operator debug CLI: it renders the current container/item
// arrangement and ad-hoc retrieval plans as tables against a running
// store, for diagnosing placement decisions without going through the
// console UI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"

	"github.com/stationcargo/cargostow/internal/config"
	"github.com/stationcargo/cargostow/internal/retrieval"
	"github.com/stationcargo/cargostow/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: stowctl <containers|items|retrieve NAME>")
		os.Exit(2)
	}

	log := zap.NewNop()
	cfg := config.Load()
	s := store.NewRedisStore(cfg.RedisAddr, cfg.RedisDB, log)
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "containers":
		err = store.WithTx(ctx, s, printContainers)
	case "items":
		err = store.WithTx(ctx, s, printItems)
	case "retrieve":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: stowctl retrieve NAME")
			os.Exit(2)
		}
		name := os.Args[2]
		err = store.WithTx(ctx, s, func(tx store.Tx) error { return printRetrievalPlan(ctx, tx, name) })
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printContainers(tx store.Tx) error {
	containers, err := tx.Containers().List(context.Background())
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Container ID", "Zone", "W", "D", "H", "Volume"})
	for _, c := range containers {
		t.AppendRow(table.Row{c.ID, c.Zone, c.Dims.W, c.Dims.D, c.Dims.H, c.Volume()})
	}
	t.Render()
	return nil
}

func printItems(tx store.Tx) error {
	items, err := tx.Items().List(context.Background())
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Item ID", "Name", "Priority", "Container", "Origin", "Waste"})
	for _, it := range items {
		ctnr, origin := "-", "-"
		if it.IsPlaced() {
			ctnr = it.Placement.ContainerID
			origin = fmt.Sprintf("%v", it.Placement.Origin)
		}
		t.AppendRow(table.Row{it.ID, it.Name, it.Priority, ctnr, origin, it.Waste})
	}
	t.Render()
	return nil
}

func printRetrievalPlan(ctx context.Context, tx store.Tx, name string) error {
	planner := retrieval.New(nil, nil)
	item, err := planner.Disambiguate(ctx, tx, name)
	if err != nil {
		return err
	}
	plan, err := planner.Plan(ctx, tx, item)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Action", "Item", "Container", "Origin"})
	for _, step := range plan.Steps {
		t.AppendRow(table.Row{step.Sequence, step.Action, step.ItemID, step.ContainerID, fmt.Sprintf("%v", step.Origin)})
	}
	t.Render()
	return nil
}
