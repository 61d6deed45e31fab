package ward

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/adt/internal/platform/adterr"
	"github.com/hms/adt/internal/platform/auth"
	"github.com/hms/adt/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires ward CRUD onto the general API group and the bed
// board endpoints onto the ADT group, where the UI expects them.
func (h *Handler) RegisterRoutes(api *echo.Group, adtAPI *echo.Group) {
	read := api.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	read.GET("/wards", h.ListWards)
	read.GET("/wards/:id", h.GetWard)

	write := api.Group("", auth.RequireRole("registrar"))
	write.POST("/wards", h.CreateWard)
	write.PUT("/wards/:id", h.UpdateWard)
	write.DELETE("/wards/:id", h.DeleteWard)
	write.POST("/wards/:id/beds", h.CreateBed)

	adtRead := adtAPI.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	adtRead.GET("/beds", h.BedBoard)

	// Manual occupancy override is restricted to nursing staff.
	adtWrite := adtAPI.Group("", auth.RequireRole("nurse"))
	adtWrite.PATCH("/beds/:id", h.OverrideBedStatus)
}

func (h *Handler) CreateWard(c echo.Context) error {
	var w Ward
	if err := c.Bind(&w); err != nil {
		return adterr.Validationf("invalid request body")
	}
	if err := h.svc.CreateWard(c.Request().Context(), &w); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) GetWard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return adterr.Validationf("invalid id")
	}
	w, err := h.svc.GetWard(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) ListWards(c echo.Context) error {
	pg := pagination.FromContext(c)
	wards, total, err := h.svc.ListWards(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(wards, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateWard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return adterr.Validationf("invalid id")
	}
	var w Ward
	if err := c.Bind(&w); err != nil {
		return adterr.Validationf("invalid request body")
	}
	w.ID = id
	if err := h.svc.UpdateWard(c.Request().Context(), &w); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeleteWard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return adterr.Validationf("invalid id")
	}
	if err := h.svc.DeleteWard(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CreateBed(c echo.Context) error {
	wardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return adterr.Validationf("invalid ward id")
	}
	var b Bed
	if err := c.Bind(&b); err != nil {
		return adterr.Validationf("invalid request body")
	}
	b.WardID = wardID
	if err := h.svc.CreateBed(c.Request().Context(), &b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) BedBoard(c echo.Context) error {
	wardID := uuid.Nil
	if raw := c.QueryParam("ward_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return adterr.Validationf("invalid ward_id")
		}
		wardID = id
	}
	entries, err := h.svc.BedBoard(c.Request().Context(), wardID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) OverrideBedStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return adterr.Validationf("invalid id")
	}
	var body struct {
		IsOccupied *bool `json:"is_occupied"`
	}
	if err := c.Bind(&body); err != nil {
		return adterr.Validationf("invalid request body")
	}
	if body.IsOccupied == nil {
		return adterr.Validationf("is_occupied is required")
	}
	bed, err := h.svc.OverrideBedStatus(c.Request().Context(), id, *body.IsOccupied)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bed)
}
