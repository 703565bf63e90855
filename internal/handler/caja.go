package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/apierror"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/dto"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/middleware"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/service"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir opens a new session on a register with the declared opening float.
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	usuarioID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("no_autenticado", "Token mal formado"))
		return
	}

	resp, err := h.svc.Abrir(c.Request.Context(), usuarioID, claims.Nombre, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// RegistrarMovimiento appends a manual ingreso or egreso to the open session.
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	usuarioID, _ := uuid.Parse(claims.UserID)

	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), usuarioID, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Transferir moves an amount between payment channels as a paired
// egreso/ingreso; both legs share a reference and timestamp.
func (h *CajaHandler) Transferir(c *gin.Context) {
	var req dto.TransferenciaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	usuarioID, _ := uuid.Parse(claims.UserID)

	legs, err := h.svc.Transferir(c.Request.Context(), usuarioID, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"movimientos": legs})
}

// Cerrar reconciles the declared total against the expected balance and, if
// within tolerance, closes the session. Out-of-tolerance closes come back as
// 409 with the arqueo attached so a supervisor can decide on a forced close.
func (h *CajaHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cerrar(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CerrarForzado closes a session even when the arqueo falls outside the
// tolerance. Route-level role guards restrict who reaches this handler.
func (h *CajaHandler) CerrarForzado(c *gin.Context) {
	var req dto.CerrarForzadoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CerrarForzado(c.Request.Context(), req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Estado reports whether a register has an open session. Other modules call
// this before operations that require an open register.
func (h *CajaHandler) Estado(c *gin.Context) {
	cajaID := c.Param("caja_id")
	c.JSON(http.StatusOK, h.svc.Estado(c.Request.Context(), cajaID))
}

// SesionActiva returns the open session of a register, or 404.
func (h *CajaHandler) SesionActiva(c *gin.Context) {
	cajaID := c.Param("caja_id")
	resp, err := h.svc.SesionActiva(c.Request.Context(), cajaID)
	if err != nil {
		responderError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusNotFound, apierror.New("sin_sesion_abierta", "La caja no tiene una sesion abierta"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Reporte returns the per-channel balances and expected total of a session.
func (h *CajaHandler) Reporte(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("id_invalido", "ID de sesion invalido"))
		return
	}
	resp, err := h.svc.Reporte(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movimientos lists a session's ledger, optionally filtered by tipo, metodo
// and a [desde, hasta] time range.
func (h *CajaHandler) Movimientos(c *gin.Context) {
	id, filtro, ok := h.parseFiltro(c)
	if !ok {
		return
	}
	resp, err := h.svc.Movimientos(c.Request.Context(), id, filtro)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movimientos": resp, "total": len(resp)})
}

// MovimientosCSV streams the filtered ledger as a CSV download.
func (h *CajaHandler) MovimientosCSV(c *gin.Context) {
	id, filtro, ok := h.parseFiltro(c)
	if !ok {
		return
	}
	movimientos, err := h.svc.Movimientos(c.Request.Context(), id, filtro)
	if err != nil {
		responderError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="movimientos-`+id.String()+`.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"movimiento_id", "tipo", "metodo", "monto", "concepto", "referencia", "registrado_en"})
	for _, m := range movimientos {
		referencia := ""
		if m.Referencia != nil {
			referencia = *m.Referencia
		}
		_ = w.Write([]string{m.MovimientoID, m.Tipo, m.Metodo, m.Monto.String(), m.Concepto, referencia, m.RegistradoEn})
	}
	w.Flush()
}

// Historial lists closed sessions, newest first, paginated.
func (h *CajaHandler) Historial(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sesiones, total, err := h.svc.Historial(c.Request.Context(), page, limit)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sesiones": sesiones,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func (h *CajaHandler) parseFiltro(c *gin.Context) (uuid.UUID, caja.Filtro, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("id_invalido", "ID de sesion invalido"))
		return uuid.Nil, caja.Filtro{}, false
	}

	var filtro caja.Filtro
	if tipo := c.Query("tipo"); tipo != "" {
		t := model.TipoMovimiento(tipo)
		filtro.Tipo = &t
	}
	if metodo := c.Query("metodo"); metodo != "" {
		m := model.MetodoPago(metodo)
		filtro.Metodo = &m
	}
	if desde := c.Query("desde"); desde != "" {
		t, err := time.Parse(time.RFC3339, desde)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("filtro_invalido", "Parametro 'desde' invalido (RFC3339)"))
			return uuid.Nil, caja.Filtro{}, false
		}
		filtro.Desde = &t
	}
	if hasta := c.Query("hasta"); hasta != "" {
		t, err := time.Parse(time.RFC3339, hasta)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("filtro_invalido", "Parametro 'hasta' invalido (RFC3339)"))
			return uuid.Nil, caja.Filtro{}, false
		}
		filtro.Hasta = &t
	}
	return id, filtro, true
}
