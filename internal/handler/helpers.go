package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/apierror"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/dto"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("json_invalido", "JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// arqueoRechazado is the 409 body when a close lands outside the tolerance.
// It carries the reconciliation so the supervisor can review before forcing.
type arqueoRechazado struct {
	Code   string             `json:"code"`
	Detail string             `json:"detail"`
	Arqueo dto.ArqueoResponse `json:"arqueo"`
}

// responderError maps domain errors onto HTTP statuses and stable codes.
func responderError(c *gin.Context, err error) {
	var fueraTolerancia *caja.FueraDeToleranciaError
	if errors.As(err, &fueraTolerancia) {
		c.JSON(http.StatusConflict, arqueoRechazado{
			Code:   "arqueo_fuera_de_tolerancia",
			Detail: err.Error(),
			Arqueo: dto.NewArqueoResponse(fueraTolerancia.Resultado),
		})
		return
	}

	var montoInvalido *caja.MontoInvalidoError
	if errors.As(err, &montoInvalido) {
		c.JSON(http.StatusUnprocessableEntity, apierror.New("monto_invalido", err.Error()))
		return
	}

	switch {
	case errors.Is(err, caja.ErrCajaYaAbierta):
		c.JSON(http.StatusConflict, apierror.New("caja_ya_abierta", err.Error()))
	case errors.Is(err, caja.ErrSinSesionAbierta):
		c.JSON(http.StatusConflict, apierror.New("sin_sesion_abierta", err.Error()))
	case errors.Is(err, caja.ErrSesionNoAbierta):
		c.JSON(http.StatusConflict, apierror.New("sesion_no_abierta", err.Error()))
	case errors.Is(err, caja.ErrSesionNoEncontrada):
		c.JSON(http.StatusNotFound, apierror.New("sesion_no_encontrada", err.Error()))
	case errors.Is(err, caja.ErrConceptoVacio):
		c.JSON(http.StatusUnprocessableEntity, apierror.New("concepto_vacio", err.Error()))
	case errors.Is(err, caja.ErrMetodoInvalido),
		errors.Is(err, caja.ErrTipoInvalido),
		errors.Is(err, caja.ErrTransferenciaDirecta),
		errors.Is(err, caja.ErrMismoMetodo),
		errors.Is(err, caja.ErrObservacionesRequeridas):
		c.JSON(http.StatusUnprocessableEntity, apierror.New("movimiento_invalido", err.Error()))
	default:
		c.JSON(http.StatusBadRequest, apierror.New("solicitud_invalida", err.Error()))
	}
}
