package routes

import (
	"AkhilTG/tvsb/internal/stream"
	"reflect"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Route struct {
	Name   string
	Engine *gin.Engine
}

func (r *Route) Init(engine *gin.Engine) {
	r.Engine = engine
}

type allRoutes struct {
	log     *zap.Logger
	svc     *stream.Service
	version string
}

// Load registers every route loader method on allRoutes against the engine.
func Load(log *zap.Logger, r *gin.Engine, svc *stream.Service, version string) {
	log = log.Named("routes")
	defer log.Sugar().Info("Loaded all API Routes")

	route := &Route{Name: "/", Engine: r}
	route.Init(r)
	all := &allRoutes{
		log:     log,
		svc:     svc,
		version: version,
	}
	Type := reflect.TypeOf(all)
	Value := reflect.ValueOf(all)
	for i := 0; i < Type.NumMethod(); i++ {
		Type.Method(i).Func.Call([]reflect.Value{Value, reflect.ValueOf(route)})
	}
}
