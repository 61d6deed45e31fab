package adt

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/adt/internal/platform/adterr"
	"github.com/hms/adt/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	read.GET("/admissions", h.ListAdmissions)
	read.GET("/admissions/:id", h.GetAdmission)
	read.GET("/discharges", h.ListDischarges)
	read.GET("/transfers", h.ListTransfers)

	write := api.Group("", auth.RequireRole("physician", "registrar"))
	write.POST("/admissions", h.Admit)
	write.PATCH("/admissions/:id", h.UpdateAdmission)
	write.POST("/discharges", h.Discharge)
	write.POST("/transfers", h.Transfer)
}

func (h *Handler) Admit(c echo.Context) error {
	var p AdmitParams
	if err := c.Bind(&p); err != nil {
		return adterr.Validationf("invalid request body")
	}
	adm, err := h.svc.Admit(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, adm)
}

func (h *Handler) GetAdmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return adterr.Validationf("invalid id")
	}
	view, err := h.svc.GetAdmission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) ListAdmissions(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	views, err := h.svc.ListAdmissions(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) UpdateAdmission(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return adterr.Validationf("invalid id")
	}
	var patch AdmissionPatch
	if err := c.Bind(&patch); err != nil {
		return adterr.Validationf("invalid request body")
	}
	adm, err := h.svc.UpdateAdmission(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, adm)
}

func (h *Handler) Discharge(c echo.Context) error {
	var p DischargeParams
	if err := c.Bind(&p); err != nil {
		return adterr.Validationf("invalid request body")
	}
	dis, err := h.svc.Discharge(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, dis)
}

func (h *Handler) ListDischarges(c echo.Context) error {
	views, err := h.svc.ListDischarges(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func (h *Handler) Transfer(c echo.Context) error {
	var p TransferParams
	if err := c.Bind(&p); err != nil {
		return adterr.Validationf("invalid request body")
	}
	tr, err := h.svc.Transfer(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tr)
}

func (h *Handler) ListTransfers(c echo.Context) error {
	views, err := h.svc.ListTransfers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, views)
}

func filterFromQuery(c echo.Context) (AdmissionFilter, error) {
	var f AdmissionFilter
	if raw := c.QueryParam("ward_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, adterr.Validationf("invalid ward_id")
		}
		f.WardID = id
	}
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, adterr.Validationf("invalid patient_id")
		}
		f.PatientID = id
	}
	f.ActiveOnly = c.QueryParam("active") == "true"
	if raw := c.QueryParam("date_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, adterr.Validationf("invalid date_from, want RFC 3339")
		}
		f.DateFrom = &t
	}
	if raw := c.QueryParam("date_to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, adterr.Validationf("invalid date_to, want RFC 3339")
		}
		f.DateTo = &t
	}
	return f, nil
}
