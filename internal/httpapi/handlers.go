package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stationcargo/cargostow/internal/apperr"
	"github.com/stationcargo/cargostow/internal/domain"
	"github.com/stationcargo/cargostow/internal/exporter"
	"github.com/stationcargo/cargostow/internal/httpapi/middleware"
	"github.com/stationcargo/cargostow/internal/importer"
	"github.com/stationcargo/cargostow/internal/lifecycle"
	"github.com/stationcargo/cargostow/internal/placement"
	"github.com/stationcargo/cargostow/internal/retrieval"
	"github.com/stationcargo/cargostow/internal/store"
	"github.com/stationcargo/cargostow/internal/waste"
)

// login authenticates a crew member against the roster and starts a
// browser session, so the console UI doesn't have to resend Basic
// credentials on every call.
func (s *Server) login(crew map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.Wrap(apperr.InvalidInput, err))
			return
		}
		want, known := crew[req.Username]
		if !known || subtle.ConstantTimeCompare([]byte(req.Password), []byte(want)) != 1 {
			writeError(c, apperr.New(apperr.InvalidInput, "invalid credentials"))
			return
		}
		if err := s.sessions.login(sessions.Default(c), req.Username); err != nil {
			writeError(c, apperr.Wrap(apperr.Internal, err))
			return
		}
		c.Status(http.StatusOK)
	}
}

// logout clears the current crew session.
func (s *Server) logout(c *gin.Context) {
	if err := s.sessions.logout(sessions.Default(c)); err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createContainer(c *gin.Context) {
	var req containerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err))
		return
	}
	ctn := req.toDomain()
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		return tx.Containers().Create(c.Request.Context(), ctn)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/api/containers/"+ctn.ID)
	c.JSON(http.StatusCreated, ctn)
}

func (s *Server) listContainers(c *gin.Context) {
	var containers []*domain.Container
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		containers, err = tx.Containers().List(c.Request.Context())
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(containers)))
	c.JSON(http.StatusOK, containers)
}

// planPlacement runs the batch placement planner over a set of new items and
// candidate containers (the wire table's "placement" operation).
func (s *Server) planPlacement(c *gin.Context) {
	var req placementReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err))
		return
	}

	items := make([]*domain.Item, 0, len(req.Items))
	for _, ir := range req.Items {
		items = append(items, ir.toDomain())
	}

	var result any
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		all, err := tx.Containers().List(c.Request.Context())
		if err != nil {
			return err
		}
		containers := all
		if len(req.ContainerIDs) > 0 {
			wanted := make(map[string]bool, len(req.ContainerIDs))
			for _, id := range req.ContainerIDs {
				wanted[id] = true
			}
			filtered := make([]*domain.Container, 0, len(req.ContainerIDs))
			for _, ctn := range all {
				if wanted[ctn.ID] {
					filtered = append(filtered, ctn)
				}
			}
			containers = filtered
		}
		r, err := s.placer.Place(c.Request.Context(), tx, items, containers)
		result = r
		if err != nil {
			return err
		}
		for _, ctn := range containers {
			s.scores.Invalidate(ctn.ID)
		}
		return logPlacements(c, tx, middleware.ActorID(c), r)
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// logPlacements appends one audit record per placement and rearrangement
// step the planner emitted (spec §3 Log record).
func logPlacements(c *gin.Context, tx store.Tx, actorID string, r *placement.Result) error {
	now := time.Now()
	for _, p := range r.Placements {
		if err := tx.Logs().Append(c.Request.Context(), &domain.LogRecord{
			Timestamp: now, ActorID: actorID, Action: domain.ActionPlacement, ItemID: p.ItemID, ToCtnr: p.ContainerID,
		}); err != nil {
			return err
		}
	}
	for _, step := range r.Rearrangements {
		if err := tx.Logs().Append(c.Request.Context(), &domain.LogRecord{
			Timestamp: now, ActorID: actorID, Action: domain.ActionRearrangement, ItemID: step.ItemID,
			FromCtnr: step.FromCtnr, ToCtnr: step.ToCtnr,
		}); err != nil {
			return err
		}
	}
	return nil
}

// place performs a single operator-chosen placement of an existing item into
// a container at an explicit position (the wire table's "place" operation,
// distinct from planPlacement's batch planner).
func (s *Server) place(c *gin.Context) {
	var req placeAtReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err))
		return
	}

	actorID := req.UserID
	if actorID == "" {
		actorID = middleware.ActorID(c)
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		item, err := tx.Items().Get(c.Request.Context(), req.ItemID)
		if err != nil {
			return err
		}
		ctn, err := tx.Containers().Get(c.Request.Context(), req.ContainerID)
		if err != nil {
			return err
		}
		fromCtnr := ""
		if item.IsPlaced() {
			fromCtnr = item.Placement.ContainerID
		}
		if err := s.placer.PlaceAt(c.Request.Context(), tx, item, ctn, req.Position, req.Orientation); err != nil {
			return err
		}
		s.scores.Invalidate(ctn.ID)
		if fromCtnr != "" && fromCtnr != ctn.ID {
			s.scores.Invalidate(fromCtnr)
		}
		return tx.Logs().Append(c.Request.Context(), &domain.LogRecord{
			Timestamp: ts, ActorID: actorID, Action: domain.ActionPlacement, ItemID: item.ID, FromCtnr: fromCtnr, ToCtnr: ctn.ID,
		})
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) search(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeError(c, apperr.New(apperr.InvalidInput, "name is required"))
		return
	}
	var item *domain.Item
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		item, err = s.retriever.Disambiguate(c.Request.Context(), tx, name)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) retrieve(c *gin.Context) {
	var req retrieveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err))
		return
	}

	var plan *retrieval.Plan
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		item, err := s.resolveItem(c, tx, req)
		if err != nil {
			return err
		}
		plan, err = s.retriever.Plan(c.Request.Context(), tx, item)
		if err != nil {
			return err
		}
		s.scores.Invalidate(item.Placement.ContainerID)
		return retrieval.Execute(c.Request.Context(), tx, middleware.ActorID(c), item, time.Now())
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) resolveItem(c *gin.Context, tx store.Tx, req retrieveReq) (*domain.Item, error) {
	if req.ItemID != "" {
		return tx.Items().Get(c.Request.Context(), req.ItemID)
	}
	if req.Name != "" {
		return s.retriever.Disambiguate(c.Request.Context(), tx, req.Name)
	}
	return nil, apperr.New(apperr.InvalidInput, "item_id or name is required")
}

func (s *Server) identifyWaste(c *gin.Context) {
	var items []*domain.Item
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		items, err = waste.Identify(c.Request.Context(), tx)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) planReturn(c *gin.Context) {
	var req returnPlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err))
		return
	}
	var plan *waste.ReturnPlan
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		plan, err = s.waster.PlanReturn(c.Request.Context(), tx, req.MaxVolume, req.MaxMass)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// completeUndocking removes every waste item currently in the undocking
// container and reports how many were removed (spec §4.6/§6).
func (s *Server) completeUndocking(c *gin.Context) {
	var req completeUndockingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err))
		return
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var removed int
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		removed, err = s.waster.CompleteUndocking(c.Request.Context(), tx, middleware.ActorID(c), req.ContainerID, ts)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	s.scores.Invalidate(req.ContainerID)
	c.JSON(http.StatusOK, gin.H{"itemsRemoved": removed})
}

func (s *Server) simulateDay(c *gin.Context) {
	var req simulateDayReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err))
		return
	}
	if req.Days <= 0 {
		req.Days = 1
	}
	usagePlans := make([]lifecycle.UsagePlan, 0, len(req.UsageItemIDs))
	for _, id := range req.UsageItemIDs {
		usagePlans = append(usagePlans, lifecycle.UsagePlan{ItemID: id})
	}

	var result *lifecycle.SimulateDayResult
	now := time.Now()
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		result, err = s.lifecycle.SimulateDays(c.Request.Context(), tx, middleware.ActorID(c), now, req.Days, usagePlans)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// importItems parses an uploaded item manifest and creates every row as a
// new unplaced item (spec §6 CSV import).
func (s *Server) importItems(c *gin.Context) {
	items, err := importer.Items(c.Request.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	err = store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		for _, it := range items {
			if err := tx.Items().Create(c.Request.Context(), it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(items)})
}

// importContainers parses an uploaded container manifest and creates every
// row as a new container.
func (s *Server) importContainers(c *gin.Context) {
	containers, err := importer.Containers(c.Request.Body)
	if err != nil {
		writeError(c, err)
		return
	}
	err = store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		for _, ctn := range containers {
			if err := tx.Containers().Create(c.Request.Context(), ctn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(containers)})
}

// exportArrangement streams the current placement as the CSV format spec §6
// documents.
func (s *Server) exportArrangement(c *gin.Context) {
	var items []*domain.Item
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		items, err = tx.Items().List(c.Request.Context())
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="arrangement.csv"`)
	if err := exporter.Arrangement(c.Writer, items); err != nil {
		s.log.Error("export arrangement", zap.Error(err))
	}
}

func (s *Server) listLogs(c *gin.Context) {
	filter := store.LogFilter{
		ItemID:      c.Query("item_id"),
		ContainerID: c.Query("container_id"),
		Action:      domain.ActionKind(c.Query("action")),
	}
	start := time.Unix(0, 0)
	end := time.Now().AddDate(1, 0, 0)

	var logs []*domain.LogRecord
	err := store.WithTx(c.Request.Context(), s.store, func(tx store.Tx) error {
		var err error
		logs, err = tx.Logs().Query(c.Request.Context(), start, end, filter)
		return err
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
