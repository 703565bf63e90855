package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/config"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/handler"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/middleware"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/repository"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/service"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/worker"
)

// New wires all dependencies and returns a configured Gin engine plus the
// caja service, which the caller needs for boot-time rehydration.
// Dependency graph: Handler ← Service ← Registro/Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, registro *caja.Registro) (*gin.Engine, service.CajaService) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	cajaRepo := repository.NewCajaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	dispatcher := worker.NewDispatcher(rdb)
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	cajaSvc := service.NewCajaService(registro, cajaRepo, dispatcher, cfg)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	cajaH := handler.NewCajaHandler(cajaSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	operarios := middleware.RequireRole("cajero", "supervisor", "administrador")
	supervisores := middleware.RequireRole("supervisor", "administrador")

	v1 := r.Group("/v1", jwtMW)
	{
		cajaGroup := v1.Group("/caja")
		{
			cajaGroup.POST("/abrir", operarios, cajaH.Abrir)
			cajaGroup.POST("/movimiento", operarios, cajaH.RegistrarMovimiento)
			cajaGroup.POST("/transferencia", operarios, cajaH.Transferir)
			cajaGroup.POST("/cerrar", operarios, cajaH.Cerrar)
			// Forced close overrides the arqueo tolerance; cashiers cannot.
			cajaGroup.POST("/cerrar-forzado", supervisores, cajaH.CerrarForzado)

			cajaGroup.GET("/historial", supervisores, cajaH.Historial)

			cajaGroup.GET("/:caja_id/estado", operarios, cajaH.Estado)
			cajaGroup.GET("/:caja_id/activa", operarios, cajaH.SesionActiva)

			sesiones := cajaGroup.Group("/sesiones", operarios)
			{
				sesiones.GET("/:id/reporte", cajaH.Reporte)
				sesiones.GET("/:id/movimientos", cajaH.Movimientos)
				sesiones.GET("/:id/movimientos.csv", cajaH.MovimientosCSV)
			}
		}

		usuarios := v1.Group("/usuarios", middleware.RequireRole("administrador"))
		{
			usuarios.POST("", usuariosH.Crear)
			usuarios.GET("", usuariosH.Listar)
		}
	}

	return r, cajaSvc
}
