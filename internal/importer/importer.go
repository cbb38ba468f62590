// Package importer parses the CSV item/container manifests described in
// spec.md §6. It is a thin adapter over the stdlib csv reader: no domain
// library from the pack parses flat tabular input, so this stays
// stdlib-only by design (see DESIGN.md).
package importer

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/geom"
)

// itemColumns is the exact header order spec.md §6 documents for item
// manifests.
var itemColumns = []string{
	"Item ID", "Name", "Width (cm)", "Depth (cm)", "Height (cm)", "Mass (kg)",
	"Priority (1-100)", "Expiry Date (ISO Format)", "Usage Limit", "Preferred Zone",
}

// containerColumns is the exact header order spec.md §6 documents for
// container manifests.
var containerColumns = []string{"Container ID", "Zone", "Width (cm)", "Depth (cm)", "Height (cm)"}

// Items parses an item manifest CSV. A blank Expiry Date cell means no
// expiry; a blank Usage Limit cell is read as a usage limit of 0.
func Items(r io.Reader) ([]*domain.Item, error) {
	rows, err := readRows(r, itemColumns)
	if err != nil {
		return nil, err
	}
	items := make([]*domain.Item, 0, len(rows))
	for i, row := range rows {
		it, err := parseItemRow(row)
		if err != nil {
			return nil, apperr.Wrapf(apperr.InvalidInput, err, "item row %d", i+1)
		}
		items = append(items, it)
	}
	return items, nil
}

// Containers parses a container manifest CSV.
func Containers(r io.Reader) ([]*domain.Container, error) {
	rows, err := readRows(r, containerColumns)
	if err != nil {
		return nil, err
	}
	containers := make([]*domain.Container, 0, len(rows))
	for i, row := range rows {
		ctn, err := parseContainerRow(row)
		if err != nil {
			return nil, apperr.Wrapf(apperr.InvalidInput, err, "container row %d", i+1)
		}
		containers = append(containers, ctn)
	}
	return containers, nil
}

func readRows(r io.Reader, want []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err)
	}
	if len(header) != len(want) {
		return nil, apperr.Newf(apperr.InvalidInput, "expected %d columns, got %d", len(want), len(header))
	}
	for i, col := range want {
		if strings.TrimSpace(header[i]) != col {
			return nil, apperr.Newf(apperr.InvalidInput, "column %d: expected %q, got %q", i+1, col, header[i])
		}
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err)
	}
	return rows, nil
}

func parseItemRow(row []string) (*domain.Item, error) {
	w, err := strconv.Atoi(row[2])
	if err != nil {
		return nil, err
	}
	d, err := strconv.Atoi(row[3])
	if err != nil {
		return nil, err
	}
	h, err := strconv.Atoi(row[4])
	if err != nil {
		return nil, err
	}
	mass, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return nil, err
	}
	priority, err := strconv.Atoi(row[6])
	if err != nil {
		return nil, err
	}
	var expiry *time.Time
	if s := strings.TrimSpace(row[7]); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = time.Parse("2006-01-02", s)
			if err != nil {
				return nil, err
			}
		}
		expiry = &t
	}
	usageLimit := 0
	if s := strings.TrimSpace(row[8]); s != "" {
		usageLimit, err = strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
	}
	return &domain.Item{
		ID:            row[0],
		Name:          row[1],
		Base:          geom.Dims{W: w, D: d, H: h},
		Mass:          mass,
		Priority:      priority,
		ExpiryAt:      expiry,
		UsageLimit:    usageLimit,
		RemainingUses: usageLimit,
		PreferredZone: row[9],
	}, nil
}

func parseContainerRow(row []string) (*domain.Container, error) {
	w, err := strconv.Atoi(row[2])
	if err != nil {
		return nil, err
	}
	d, err := strconv.Atoi(row[3])
	if err != nil {
		return nil, err
	}
	h, err := strconv.Atoi(row[4])
	if err != nil {
		return nil, err
	}
	return &domain.Container{ID: row[0], Zone: row[1], Dims: geom.Dims{W: w, D: d, H: h}}, nil
}
