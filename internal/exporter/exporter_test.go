package exporter

import (
	"strings"
	"testing"

	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
)

func TestArrangementWritesPlacedItemsOnly(t *testing.T) {
	placed := &domain.Item{
		ID:   "I1",
		Base: geom.Dims{W: 10, D: 10, H: 10},
		Placement: &domain.Placement{
			ContainerID: "C1",
			Origin:      [3]int{1, 2, 3},
			Orientation: geom.OrientWDH,
		},
	}
	unplaced := &domain.Item{ID: "I2", Base: geom.Dims{W: 5, D: 5, H: 5}}

	var buf strings.Builder
	if err := Arrangement(&buf, []*domain.Item{unplaced, placed}); err != nil {
		t.Fatalf("Arrangement: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "I2") {
		t.Fatalf("unplaced item leaked into export:\n%s", out)
	}
	if !strings.Contains(out, "I1,C1,\"(1,2,3)\",\"(11,12,13)\"") {
		t.Fatalf("unexpected row:\n%s", out)
	}
}
