package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/serveis-extraordinaris/backend/internal/apperr"
	"github.com/serveis-extraordinaris/backend/internal/middleware"
	"github.com/serveis-extraordinaris/backend/internal/service"
)

// EmpresaHandler exposes the employer CRUD endpoints.  Every operation is
// scoped to the authenticated user.
type EmpresaHandler struct {
	Empreses *service.EmpresaService
}

func NewEmpresaHandler(s *service.EmpresaService) *EmpresaHandler {
	return &EmpresaHandler{Empreses: s}
}

type empresaReq struct {
	Name      string `json:"name"`
	CIF       string `json:"cif"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
	Notes     string `json:"notes"`
}

// parseDate accepts YYYY-MM-DD or RFC 3339; empty means absent.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, apperr.Validation("invalid date",
		apperr.FieldError{Field: field, Message: "must be YYYY-MM-DD"})
}

func (r empresaReq) toInput() (service.EmpresaInput, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return service.EmpresaInput{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return service.EmpresaInput{}, err
	}
	return service.EmpresaInput{
		Name:      r.Name,
		CIF:       r.CIF,
		Address:   r.Address,
		Phone:     r.Phone,
		Email:     r.Email,
		StartDate: start,
		EndDate:   end,
		Notes:     r.Notes,
	}, nil
}

func currentUser(c echo.Context) (uint64, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return 0, apperr.Unauthorized("not authenticated")
	}
	return id.ID, nil
}

func empresaID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("invalid empresa id")
	}
	return id, nil
}

// List handles GET /empreses.  ?actives=true filters to ongoing relations.
func (h *EmpresaHandler) List(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	onlyOngoing := c.QueryParam("actives") == "true"

	ctx, cancel := reqContext(c)
	defer cancel()

	empreses, err := h.Empreses.List(ctx, userID, onlyOngoing)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"empreses": empreses})
}

// Get handles GET /empreses/:id.
func (h *EmpresaHandler) Get(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := empresaID(c)
	if err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	e, err := h.Empreses.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// Create handles POST /empreses.
func (h *EmpresaHandler) Create(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req empresaReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	e, err := h.Empreses.Create(ctx, userID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

// Update handles PUT /empreses/:id.
func (h *EmpresaHandler) Update(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := empresaID(c)
	if err != nil {
		return err
	}
	var req empresaReq
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	in, err := req.toInput()
	if err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	e, err := h.Empreses.Update(ctx, id, userID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// Delete handles DELETE /empreses/:id (soft delete).
func (h *EmpresaHandler) Delete(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := empresaID(c)
	if err != nil {
		return err
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Empreses.Delete(ctx, id, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// End handles PATCH /empreses/:id/finalitzar, stamping the end of the
// working relation.  Without a body date it defaults to today.
func (h *EmpresaHandler) End(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := empresaID(c)
	if err != nil {
		return err
	}
	var req struct {
		EndDate string `json:"end_date"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return err
	}
	endDate := time.Now().UTC()
	if end != nil {
		endDate = *end
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	e, err := h.Empreses.End(ctx, id, userID, endDate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}
