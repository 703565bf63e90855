package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/repository"
)

const QueueEventosCaja = "eventos:caja"

// Evento is the wire envelope for caja events on the Redis queue.
type Evento struct {
	Nombre    string          `json:"nombre"`
	CajaID    string          `json:"caja_id"`
	SesionID  string          `json:"sesion_id"`
	EmitidoEn time.Time       `json:"emitido_en"`
	Payload   json.RawMessage `json:"payload"`
}

// Dispatcher publishes caja events into a Redis list. The service calls it
// only after a transition (and its persistence) committed — the core never
// publishes anything itself. The worker pool dequeues via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// Publicar enqueues one core event with its full snapshot as payload.
func (d *Dispatcher) Publicar(ctx context.Context, ev caja.Evento) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	envelope := Evento{
		Nombre:    ev.Nombre(),
		CajaID:    ev.CajaID(),
		SesionID:  ev.SesionID().String(),
		EmitidoEn: time.Now().UTC(),
		Payload:   payload,
	}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, QueueEventosCaja, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming the event queue
// and persisting each event as an audit row.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, auditorias repository.AuditoriaRepository, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, auditorias, i)
	}
	log.Info().Msgf("worker pool de auditoría iniciado con %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, auditorias repository.AuditoriaRepository, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d finalizando", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, QueueEventosCaja).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			procesarEvento(ctx, rdb, auditorias, result[1])
		}
	}
}

func procesarEvento(ctx context.Context, rdb *redis.Client, auditorias repository.AuditoriaRepository, raw string) {
	var ev Evento
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		log.Error().Err(err).Msg("evento de caja ilegible")
		SendToDLQ(ctx, rdb, QueueEventosCaja, json.RawMessage(raw), "unmarshal: "+err.Error())
		return
	}

	sesionID, err := uuid.Parse(ev.SesionID)
	if err != nil {
		log.Error().Err(err).Str("sesion_id", ev.SesionID).Msg("evento con sesion_id inválido")
		SendToDLQ(ctx, rdb, QueueEventosCaja, ev.Payload, "sesion_id inválido")
		return
	}

	entrada := &model.Auditoria{
		ID:           uuid.New(),
		Evento:       ev.Nombre,
		CajaID:       ev.CajaID,
		SesionID:     sesionID,
		Detalle:      ev.Payload,
		RegistradaEn: ev.EmitidoEn,
	}
	if err := auditorias.Create(ctx, entrada); err != nil {
		log.Error().Err(err).Str("evento", ev.Nombre).Msg("no se pudo persistir auditoría")
		SendToDLQ(ctx, rdb, QueueEventosCaja, ev.Payload, "persistencia: "+err.Error())
		return
	}

	log.Info().
		Str("evento", ev.Nombre).
		Str("caja_id", ev.CajaID).
		Str("sesion_id", ev.SesionID).
		Msg("evento de caja auditado")
}
