// Package caja implements the cash register session and reconciliation
// engine: the Closed→Open→Closed lifecycle per register, an append-only
// ledger of monetary movements, pure balance derivation, and the arqueo
// verdict at closing time.
//
// The package performs no I/O. Persistence and event publication are the
// caller's job; every successful transition returns the event values the
// caller should emit afterwards.
package caja

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// Reloj supplies timestamps. Injectable so tests control time and so a
// regressing wall clock can be clamped instead of silently stored.
type Reloj func() time.Time

// Opciones configures a Registro.
type Opciones struct {
	// PermitirAperturaEnCero allows opening a session with a zero total
	// float. Default business rule: allowed.
	PermitirAperturaEnCero bool
	Reloj                  Reloj
}

// Registro holds every register's state behind a per-register mutex.
// Operations on one caja are linearized; different cajas proceed in
// parallel. This replaces ambient global session state: the Registro is
// built once and injected wherever the core is used.
type Registro struct {
	mu     sync.RWMutex
	cajas  map[string]*estadoCaja
	indice map[uuid.UUID]string // every session id ever issued -> caja id

	permitirCero bool
	reloj        Reloj
}

// estadoCaja is the mutable state of one register. Its mutex serializes
// open, append and close for that register.
type estadoCaja struct {
	mu          sync.Mutex
	abierta     *model.SesionCaja
	movimientos []model.MovimientoCaja
	cerradas    map[uuid.UUID]sesionArchivada
	// ultimo is the last timestamp handed out; RegistradoEn is clamped to
	// it so timestamps never regress within a register.
	ultimo time.Time
}

type sesionArchivada struct {
	sesion      model.SesionCaja
	movimientos []model.MovimientoCaja
}

// Nuevo builds an empty Registro.
func Nuevo(opts Opciones) *Registro {
	reloj := opts.Reloj
	if reloj == nil {
		reloj = time.Now
	}
	return &Registro{
		cajas:        make(map[string]*estadoCaja),
		indice:       make(map[uuid.UUID]string),
		permitirCero: opts.PermitirAperturaEnCero,
		reloj:        reloj,
	}
}

// ── Apertura ─────────────────────────────────────────────────────────────────

// Abrir opens a new session on cajaID. Fails with ErrCajaYaAbierta if one
// is already open, or with MontoInvalidoError on a negative opening amount
// (or a zero total when zero floats are disallowed).
func (r *Registro) Abrir(cajaID string, usuarioID uuid.UUID, usuarioNombre string, montos model.Montos) (model.SesionCaja, SesionAbierta, error) {
	for metodo, monto := range montos {
		if !metodo.Valido() {
			return model.SesionCaja{}, SesionAbierta{}, ErrMetodoInvalido
		}
		if monto.IsNegative() {
			return model.SesionCaja{}, SesionAbierta{}, &MontoInvalidoError{Campo: string(metodo), Monto: monto}
		}
	}
	iniciales := montos.Normalizado()
	total := iniciales.Total()
	if total.IsZero() && !r.permitirCero {
		return model.SesionCaja{}, SesionAbierta{}, &MontoInvalidoError{Campo: "total_inicial", Monto: total}
	}

	e := r.estado(cajaID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.abierta != nil {
		return model.SesionCaja{}, SesionAbierta{}, ErrCajaYaAbierta
	}

	sesion := model.SesionCaja{
		ID:              uuid.New(),
		CajaID:          cajaID,
		UsuarioID:       usuarioID,
		UsuarioNombre:   usuarioNombre,
		MontosIniciales: iniciales,
		TotalInicial:    total,
		Estado:          model.EstadoAbierta,
		AbiertaEn:       e.ahora(r.reloj),
	}
	e.abierta = &sesion
	e.movimientos = nil

	r.mu.Lock()
	r.indice[sesion.ID] = cajaID
	r.mu.Unlock()

	copia := clonarSesion(sesion)
	return copia, SesionAbierta{Sesion: copia}, nil
}

// ── Movimientos ──────────────────────────────────────────────────────────────

// RegistrarMovimiento appends one ingreso or egreso to an open session's
// ledger. Tipo transferencia is rejected here: transfers must go through
// Transferir so both legs are recorded.
func (r *Registro) RegistrarMovimiento(sesionID uuid.UUID, tipo model.TipoMovimiento, concepto string, metodo model.MetodoPago, monto decimal.Decimal, referencia, notas *string, usuarioID uuid.UUID) (model.MovimientoCaja, MovimientoRegistrado, error) {
	switch tipo {
	case model.TipoIngreso, model.TipoEgreso:
	case model.TipoTransferencia:
		return model.MovimientoCaja{}, MovimientoRegistrado{}, ErrTransferenciaDirecta
	default:
		return model.MovimientoCaja{}, MovimientoRegistrado{}, ErrTipoInvalido
	}
	if strings.TrimSpace(concepto) == "" {
		return model.MovimientoCaja{}, MovimientoRegistrado{}, ErrConceptoVacio
	}
	if !metodo.Valido() {
		return model.MovimientoCaja{}, MovimientoRegistrado{}, ErrMetodoInvalido
	}
	if !monto.IsPositive() {
		return model.MovimientoCaja{}, MovimientoRegistrado{}, &MontoInvalidoError{Campo: "monto", Monto: monto}
	}

	e, err := r.estadoDeSesion(sesionID)
	if err != nil {
		return model.MovimientoCaja{}, MovimientoRegistrado{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.abierta == nil || e.abierta.ID != sesionID {
		return model.MovimientoCaja{}, MovimientoRegistrado{}, ErrSesionNoAbierta
	}

	mov := model.MovimientoCaja{
		ID:           uuid.New(),
		SesionID:     sesionID,
		CajaID:       e.abierta.CajaID,
		Tipo:         tipo,
		Concepto:     strings.TrimSpace(concepto),
		Metodo:       metodo,
		Monto:        monto,
		Referencia:   referencia,
		Notas:        notas,
		UsuarioID:    usuarioID,
		RegistradoEn: e.ahora(r.reloj),
	}
	e.movimientos = append(e.movimientos, mov)

	return mov, MovimientoRegistrado{Movimiento: mov}, nil
}

// Transferir moves monto from the origen channel to the destino channel by
// appending a paired egreso+ingreso sharing one reference. Both legs are
// written under the register lock — both or neither.
func (r *Registro) Transferir(sesionID uuid.UUID, origen, destino model.MetodoPago, monto decimal.Decimal, concepto string, usuarioID uuid.UUID) ([]model.MovimientoCaja, []MovimientoRegistrado, error) {
	if !origen.Valido() || !destino.Valido() {
		return nil, nil, ErrMetodoInvalido
	}
	if origen == destino {
		return nil, nil, ErrMismoMetodo
	}
	if strings.TrimSpace(concepto) == "" {
		return nil, nil, ErrConceptoVacio
	}
	if !monto.IsPositive() {
		return nil, nil, &MontoInvalidoError{Campo: "monto", Monto: monto}
	}

	e, err := r.estadoDeSesion(sesionID)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.abierta == nil || e.abierta.ID != sesionID {
		return nil, nil, ErrSesionNoAbierta
	}

	// Both legs share reference and timestamp so the pair reads as one
	// operation in the ledger.
	referencia := "transferencia:" + uuid.NewString()
	ts := e.ahora(r.reloj)
	concepto = strings.TrimSpace(concepto)

	legs := []model.MovimientoCaja{
		{
			ID: uuid.New(), SesionID: sesionID, CajaID: e.abierta.CajaID,
			Tipo: model.TipoEgreso, Concepto: concepto, Metodo: origen,
			Monto: monto, Referencia: &referencia, UsuarioID: usuarioID, RegistradoEn: ts,
		},
		{
			ID: uuid.New(), SesionID: sesionID, CajaID: e.abierta.CajaID,
			Tipo: model.TipoIngreso, Concepto: concepto, Metodo: destino,
			Monto: monto, Referencia: &referencia, UsuarioID: usuarioID, RegistradoEn: ts,
		},
	}
	e.movimientos = append(e.movimientos, legs...)

	eventos := []MovimientoRegistrado{
		{Movimiento: legs[0]},
		{Movimiento: legs[1]},
	}
	return legs, eventos, nil
}

// ── Cierre ───────────────────────────────────────────────────────────────────

// Cerrar reconciles the declared amount against the expected total and, if
// within tolerance, closes the session. Out of tolerance it fails with
// *FueraDeToleranciaError carrying the full result and mutates nothing;
// the override path is CerrarForzado.
func (r *Registro) Cerrar(sesionID uuid.UUID, declarado, tolerancia decimal.Decimal, observaciones *string) (model.SesionCaja, SesionCerrada, error) {
	return r.cerrar(sesionID, declarado, tolerancia, observaciones, false)
}

// CerrarForzado closes the session regardless of the arqueo verdict. It is
// a separately-authorized operation: callers must gate it (supervisor
// role) and non-empty observaciones are mandatory.
func (r *Registro) CerrarForzado(sesionID uuid.UUID, declarado, tolerancia decimal.Decimal, observaciones string) (model.SesionCaja, SesionCerrada, error) {
	if strings.TrimSpace(observaciones) == "" {
		return model.SesionCaja{}, SesionCerrada{}, ErrObservacionesRequeridas
	}
	return r.cerrar(sesionID, declarado, tolerancia, &observaciones, true)
}

func (r *Registro) cerrar(sesionID uuid.UUID, declarado, tolerancia decimal.Decimal, observaciones *string, forzado bool) (model.SesionCaja, SesionCerrada, error) {
	if declarado.IsNegative() {
		return model.SesionCaja{}, SesionCerrada{}, &MontoInvalidoError{Campo: "total_declarado", Monto: declarado}
	}
	if tolerancia.IsNegative() {
		return model.SesionCaja{}, SesionCerrada{}, &MontoInvalidoError{Campo: "tolerancia", Monto: tolerancia}
	}

	e, err := r.estadoDeSesion(sesionID)
	if err != nil {
		return model.SesionCaja{}, SesionCerrada{}, ErrSinSesionAbierta
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.abierta == nil || e.abierta.ID != sesionID {
		return model.SesionCaja{}, SesionCerrada{}, ErrSinSesionAbierta
	}

	resultado := Reconciliar(TotalEsperado(*e.abierta, e.movimientos), declarado, tolerancia)
	if !resultado.DentroDeTolerancia && !forzado {
		return model.SesionCaja{}, SesionCerrada{}, &FueraDeToleranciaError{Resultado: resultado}
	}

	ts := e.ahora(r.reloj)
	sesion := e.abierta
	sesion.Estado = model.EstadoCerrada
	sesion.CerradaEn = &ts
	sesion.TotalDeclarado = &declarado
	sesion.Arqueo = &resultado
	sesion.CierreForzado = forzado
	if observaciones != nil && strings.TrimSpace(*observaciones) != "" {
		obs := strings.TrimSpace(*observaciones)
		sesion.Observaciones = &obs
	}

	if e.cerradas == nil {
		e.cerradas = make(map[uuid.UUID]sesionArchivada)
	}
	e.cerradas[sesionID] = sesionArchivada{
		sesion:      clonarSesion(*sesion),
		movimientos: e.movimientos,
	}
	e.abierta = nil
	e.movimientos = nil

	copia := clonarSesion(*sesion)
	return copia, SesionCerrada{Sesion: copia, Forzado: forzado}, nil
}

// ── Consultas ────────────────────────────────────────────────────────────────

// Estado reports whether cajaID currently has an open session. Used by
// collaborators (invoice issuance) to gate operations on a closed till.
func (r *Registro) Estado(cajaID string) model.EstadoSesion {
	r.mu.RLock()
	e, ok := r.cajas[cajaID]
	r.mu.RUnlock()
	if !ok {
		return model.EstadoCerrada
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.abierta == nil {
		return model.EstadoCerrada
	}
	return model.EstadoAbierta
}

// SesionActiva returns the open session on cajaID, if any.
func (r *Registro) SesionActiva(cajaID string) (model.SesionCaja, bool) {
	r.mu.RLock()
	e, ok := r.cajas[cajaID]
	r.mu.RUnlock()
	if !ok {
		return model.SesionCaja{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.abierta == nil {
		return model.SesionCaja{}, false
	}
	return clonarSesion(*e.abierta), true
}

// Sesion returns a snapshot of any session the registry knows, open or closed.
func (r *Registro) Sesion(sesionID uuid.UUID) (model.SesionCaja, error) {
	e, err := r.estadoDeSesion(sesionID)
	if err != nil {
		return model.SesionCaja{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.abierta != nil && e.abierta.ID == sesionID {
		return clonarSesion(*e.abierta), nil
	}
	if arch, ok := e.cerradas[sesionID]; ok {
		return clonarSesion(arch.sesion), nil
	}
	return model.SesionCaja{}, ErrSesionNoEncontrada
}

// Movimientos returns the session's ledger in append order. The returned
// slice is a copy: the ledger itself exposes no mutation.
func (r *Registro) Movimientos(sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	return r.Filtrar(sesionID, Filtro{})
}

// CantidadMovimientos reports the ledger length for a session.
func (r *Registro) CantidadMovimientos(sesionID uuid.UUID) (int, error) {
	movs, err := r.Movimientos(sesionID)
	if err != nil {
		return 0, err
	}
	return len(movs), nil
}

// Filtro narrows a ledger read. Nil fields match everything; Desde/Hasta
// bound RegistradoEn inclusively.
type Filtro struct {
	Tipo   *model.TipoMovimiento
	Metodo *model.MetodoPago
	Desde  *time.Time
	Hasta  *time.Time
}

func (f Filtro) Aplica(m model.MovimientoCaja) bool {
	if f.Tipo != nil && m.Tipo != *f.Tipo {
		return false
	}
	if f.Metodo != nil && m.Metodo != *f.Metodo {
		return false
	}
	if f.Desde != nil && m.RegistradoEn.Before(*f.Desde) {
		return false
	}
	if f.Hasta != nil && m.RegistradoEn.After(*f.Hasta) {
		return false
	}
	return true
}

// Filtrar returns the movements matching f, preserving append order.
// Read-only; repeated calls without an intervening append return identical
// sequences.
func (r *Registro) Filtrar(sesionID uuid.UUID, f Filtro) ([]model.MovimientoCaja, error) {
	e, err := r.estadoDeSesion(sesionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var fuente []model.MovimientoCaja
	switch {
	case e.abierta != nil && e.abierta.ID == sesionID:
		fuente = e.movimientos
	default:
		arch, ok := e.cerradas[sesionID]
		if !ok {
			return nil, ErrSesionNoEncontrada
		}
		fuente = arch.movimientos
	}

	out := make([]model.MovimientoCaja, 0, len(fuente))
	for _, m := range fuente {
		if f.Aplica(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// ── Rehidratación ────────────────────────────────────────────────────────────

// Rehidratar loads an open session (and its ledger) persisted by a
// previous process into the registry. Only open sessions are rehydrated;
// closed ones live in the database.
func (r *Registro) Rehidratar(sesion model.SesionCaja, movimientos []model.MovimientoCaja) error {
	if sesion.Estado != model.EstadoAbierta {
		return ErrSesionNoAbierta
	}
	e := r.estado(sesion.CajaID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.abierta != nil {
		return ErrCajaYaAbierta
	}

	copia := clonarSesion(sesion)
	e.abierta = &copia
	e.movimientos = append([]model.MovimientoCaja(nil), movimientos...)
	e.ultimo = sesion.AbiertaEn
	for _, m := range e.movimientos {
		if m.RegistradoEn.After(e.ultimo) {
			e.ultimo = m.RegistradoEn
		}
	}

	r.mu.Lock()
	r.indice[sesion.ID] = sesion.CajaID
	r.mu.Unlock()
	return nil
}

// ── Internos ─────────────────────────────────────────────────────────────────

func (r *Registro) estado(cajaID string) *estadoCaja {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cajas[cajaID]
	if !ok {
		e = &estadoCaja{}
		r.cajas[cajaID] = e
	}
	return e
}

func (r *Registro) estadoDeSesion(sesionID uuid.UUID) (*estadoCaja, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cajaID, ok := r.indice[sesionID]
	if !ok {
		return nil, ErrSesionNoEncontrada
	}
	return r.cajas[cajaID], nil
}

// ahora hands out the next timestamp, clamping a regressing clock to the
// last issued value so RegistradoEn stays monotonically non-decreasing.
func (e *estadoCaja) ahora(reloj Reloj) time.Time {
	t := reloj()
	if t.Before(e.ultimo) {
		t = e.ultimo
	}
	e.ultimo = t
	return t
}

// clonarSesion deep-copies the parts of a session that callers could
// otherwise mutate through shared references.
func clonarSesion(s model.SesionCaja) model.SesionCaja {
	out := s
	if s.MontosIniciales != nil {
		montos := make(model.Montos, len(s.MontosIniciales))
		for k, v := range s.MontosIniciales {
			montos[k] = v
		}
		out.MontosIniciales = montos
	}
	if s.Arqueo != nil {
		arqueo := *s.Arqueo
		out.Arqueo = &arqueo
	}
	if s.CerradaEn != nil {
		ts := *s.CerradaEn
		out.CerradaEn = &ts
	}
	if s.TotalDeclarado != nil {
		d := *s.TotalDeclarado
		out.TotalDeclarado = &d
	}
	if s.Observaciones != nil {
		obs := *s.Observaciones
		out.Observaciones = &obs
	}
	return out
}
