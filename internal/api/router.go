package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facepass/internal/api/handlers"
	"github.com/your-org/facepass/internal/api/ws"
	"github.com/your-org/facepass/internal/attendance"
)

type RouterConfig struct {
	Service *attendance.Service
	Hub     *ws.Hub
	// Checks are run by /readyz.
	Checks []handlers.Check
	// MaxUploadBytes bounds the in-memory part of multipart forms.
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	systemH := handlers.NewSystemHandler(cfg.Checks...)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	employeeH := handlers.NewEmployeeHandler(cfg.Service)
	attendanceH := handlers.NewAttendanceHandler(cfg.Service)

	v1 := r.Group("/v1")

	v1.GET("/ws", cfg.Hub.HandleWS)

	// Employees
	v1.POST("/employees", employeeH.Register)
	v1.GET("/employees", employeeH.List)
	v1.GET("/employees/:id", employeeH.Get)
	v1.GET("/employees/:id/photo", employeeH.Photo)

	// Attendance
	v1.POST("/attendance", attendanceH.Mark)
	v1.GET("/attendance", attendanceH.List)
	v1.GET("/attendance/:date", attendanceH.List)

	// Unversioned aliases kept for older clients
	r.GET("/health", systemH.Healthz)
	r.POST("/register", employeeH.Register)
	r.GET("/employees", employeeH.List)
	r.POST("/attendance", attendanceH.Mark)
	r.GET("/attendance/:date", attendanceH.List)

	return r
}
