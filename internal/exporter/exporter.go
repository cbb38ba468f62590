// Package exporter writes the current arrangement as the CSV format
// spec.md §6 documents, the mirror of internal/importer.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/stationcargo/cargostow/internal/domain"
)

var arrangementColumns = []string{"Item ID", "Container ID", "Coordinates (W1,D1,H1)", "(W2,D2,H2)"}

// Arrangement writes one row per placed item, ordered by item id for a
// stable diff-friendly export. Unplaced items are omitted.
func Arrangement(w io.Writer, items []*domain.Item) error {
	placed := make([]*domain.Item, 0, len(items))
	for _, it := range items {
		if it.IsPlaced() {
			placed = append(placed, it)
		}
	}
	sort.Slice(placed, func(i, j int) bool { return placed[i].ID < placed[j].ID })

	cw := csv.NewWriter(w)
	if err := cw.Write(arrangementColumns); err != nil {
		return err
	}
	for _, it := range placed {
		box := it.EffectiveBox()
		ex, ey, ez := box.End()
		row := []string{
			it.ID,
			it.Placement.ContainerID,
			fmt.Sprintf("(%d,%d,%d)", box.X, box.Y, box.Z),
			fmt.Sprintf("(%d,%d,%d)", ex, ey, ez),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
