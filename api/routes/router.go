package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/norberto-e-888/pos-app/api/controllers"
	ordercontrollers "github.com/norberto-e-888/pos-app/api/controllers/orders"
	"github.com/norberto-e-888/pos-app/api/middleware"
	"github.com/norberto-e-888/pos-app/pkg/config"
	"github.com/norberto-e-888/pos-app/pkg/enums"
	"github.com/norberto-e-888/pos-app/pkg/logger"
	"github.com/norberto-e-888/pos-app/pkg/metrics"
)

// Dependencies is everything the HTTP surface needs. Handlers receive only the
// piece they use.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	Readiness   map[string]controllers.Pinger
	Orders      ordercontrollers.Service
	Products    controllers.ProductService
	Users       controllers.SignUpService
	Aggregation controllers.AggregationReader
	Metrics     *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

// Route is one row of the route table. A nil Roles means the route is public;
// otherwise the caller needs a valid token carrying at least one of Roles.
type Route struct {
	Method  string
	Pattern string
	Roles   []enums.Role
	Handler http.HandlerFunc
}

var (
	customerOnly  = []enums.Role{enums.RoleCustomer}
	adminOnly     = []enums.Role{enums.RoleAdmin}
	customerAdmin = []enums.Role{enums.RoleCustomer, enums.RoleAdmin}
)

// Table lists every endpoint the API serves.
func Table(deps Dependencies) []Route {
	cfg, logg := deps.Config, deps.Logger
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	table := []Route{
		{http.MethodGet, "/health/live", nil, controllers.HealthLive(cfg)},
		{http.MethodGet, "/health/ready", nil, controllers.HealthReady(cfg, logg, deps.Readiness)},
		{http.MethodGet, "/metrics", nil, metrics.Handler(gatherer).ServeHTTP},
	}
	if !cfg.App.IsProd() {
		table = append(table, Route{http.MethodPost, "/api/v1/auth/sign-up", nil, controllers.AuthSignUp(deps.Users, logg)})
	}

	return append(table,
		Route{http.MethodPost, "/api/v1/orders", customerAdmin, ordercontrollers.Create(deps.Orders, logg)},
		Route{http.MethodGet, "/api/v1/orders", customerOnly, ordercontrollers.List(deps.Orders, logg)},
		Route{http.MethodGet, "/api/v1/orders/{orderId}", customerOnly, ordercontrollers.Get(deps.Orders, logg)},
		Route{http.MethodDelete, "/api/v1/orders/{orderId}/cancel", customerAdmin, ordercontrollers.Cancel(deps.Orders, logg)},
		Route{http.MethodPatch, "/api/v1/orders/{orderId}/shipping-address", customerAdmin, ordercontrollers.AddShippingAddress(deps.Orders, logg)},
		Route{http.MethodPatch, "/api/v1/orders/{orderId}/add-item", customerAdmin, ordercontrollers.AddItem(deps.Orders, logg)},
		Route{http.MethodPatch, "/api/v1/orders/{orderId}/remove-item", customerAdmin, ordercontrollers.RemoveItem(deps.Orders, logg)},
		Route{http.MethodPatch, "/api/v1/orders/{orderId}/update-item", customerAdmin, ordercontrollers.UpdateItem(deps.Orders, logg)},
		Route{http.MethodPost, "/api/v1/orders/{orderId}/place", customerAdmin, ordercontrollers.Place(deps.Orders, logg)},
		Route{http.MethodGet, "/api/v1/my-aggregation", customerOnly, controllers.MyAggregation(deps.Aggregation, logg)},

		Route{http.MethodPost, "/api/v1/admin/orders", adminOnly, ordercontrollers.Create(deps.Orders, logg)},
		Route{http.MethodGet, "/api/v1/admin/orders", adminOnly, ordercontrollers.List(deps.Orders, logg)},
		Route{http.MethodGet, "/api/v1/admin/orders/{orderId}", adminOnly, ordercontrollers.Get(deps.Orders, logg)},
		Route{http.MethodGet, "/api/v1/admin/customer-aggregation/{customerId}", adminOnly, controllers.CustomerAggregation(deps.Aggregation, logg)},

		Route{http.MethodPost, "/api/v1/products", adminOnly, controllers.CreateProduct(deps.Products, logg)},
		Route{http.MethodPatch, "/api/v1/products/{productId}/add-stock", adminOnly, controllers.AddProductStock(deps.Products, logg)},
		Route{http.MethodGet, "/api/v1/products", nil, controllers.QueryProducts(deps.Products, logg)},
	)
}

// NewRouter mounts Table behind the shared middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	authenticate := middleware.Auth(cfg.JWT, logg)
	for _, route := range Table(deps) {
		if route.Roles == nil {
			r.Method(route.Method, route.Pattern, route.Handler)
			continue
		}
		r.With(authenticate, middleware.RequireRoles(logg, route.Roles...)).
			Method(route.Method, route.Pattern, route.Handler)
	}
	return r
}
