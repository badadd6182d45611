// Package server assembles the HTTP API: services, handlers, middleware and routes.
package server

import (
	"net/http"
	"time"

	"shop-service/internal/handler"
	mid "shop-service/internal/middleware"
	"shop-service/internal/realtime"
	"shop-service/internal/service"
	"shop-service/pkg/cache"
	"shop-service/pkg/config"
	"shop-service/pkg/events"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const bodyLimit = "2M"

// Deps are the collaborators of the API. Cache, the publishers and Hub may be nil.
type Deps struct {
	Config        *config.Config
	DB            *gorm.DB
	Cache         *cache.Cache
	JWT           *jwtutil.JWTUtil
	OrderEvents   events.Publisher
	ContactEvents events.Publisher
	Hub           *realtime.Hub
	Log           *zap.Logger
}

// New builds the echo instance with every route registered
func New(d Deps) *echo.Echo {
	cfg := d.Config
	log := d.Log

	categories := service.NewCategoryService(d.DB, d.Cache, log)
	products := service.NewProductService(d.DB, d.Cache, log, cfg.Shop.LowStockThreshold, cfg.Shop.StorageBaseURL)
	cart := service.NewCartService(d.DB, log)
	coupons := service.NewCouponService(d.DB, log)
	orders := service.NewOrderService(d.DB, d.Cache, d.OrderEvents, log, cfg.Redis.IdempotencyTTL)
	reviews := service.NewReviewService(d.DB, d.Cache, log, cfg.Shop.ReviewsRequirePurchase)
	wishlist := service.NewWishlistService(d.DB, log)
	contact := service.NewContactService(d.DB, d.ContactEvents, cfg.Shop.ContactRecipient, log)
	payments := service.NewPaymentMethodService(d.DB, log)
	auth := service.NewAuthService(d.DB, d.JWT, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware())
	e.Use(mid.MetricsMiddleware)
	e.Use(logger.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.Server.CORSAllowOrigins,
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, handler.HeaderIdempotencyKey},
		ExposeHeaders: []string{echo.HeaderXRequestID, echo.HeaderContentDisposition},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))

	health := handler.NewHealthHandler(d.DB, d.Cache, cfg.ServiceName)
	e.GET("/health", health.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if d.Hub != nil {
		e.GET("/ws/orders", d.Hub.ServeWS)
	}

	limiter := rateLimiter(cfg.RateLimit)
	optional := mid.OptionalJWTAuthMiddleware(d.JWT)
	authed := mid.JWTAuthMiddleware(d.JWT)

	authH := handler.NewAuthHandler(auth)
	authAPI := e.Group("/auth", limiter)
	authAPI.POST("/register", authH.Register)
	authAPI.POST("/login", authH.Login)

	api := e.Group("/api")

	// Storefront
	catH := handler.NewCategoryHandler(categories)
	api.GET("/categories", catH.ListCategories)
	api.GET("/categories/:id", catH.GetCategory)
	api.GET("/subcategories", catH.ListSubCategories)
	api.GET("/subcategories/:id", catH.GetSubCategory)
	api.GET("/tags", catH.ListTags)

	productH := handler.NewProductHandler(products)
	reviewH := handler.NewReviewHandler(reviews)
	api.GET("/products", productH.ListProducts, optional)
	api.GET("/products/search", productH.SearchProducts, optional)
	api.GET("/products/:id", productH.GetProduct, optional)
	api.GET("/products/:id/reviews", reviewH.ListForProduct)

	paymentH := handler.NewPaymentMethodHandler(payments)
	api.GET("/payment-methods", paymentH.ListActive)

	contactH := handler.NewContactHandler(contact)
	api.POST("/contact", contactH.Submit, limiter)

	// Customer
	users := api.Group("/users", authed)
	users.GET("/profile", authH.Profile)
	users.PUT("/profile", authH.UpdateProfile)

	cartH := handler.NewCartHandler(cart)
	cartAPI := api.Group("/cart", authed)
	cartAPI.GET("", cartH.GetCart)
	cartAPI.DELETE("", cartH.Clear)
	cartAPI.POST("/items", cartH.AddItem)
	cartAPI.PUT("/items/:id", cartH.UpdateItem)
	cartAPI.DELETE("/items/:id", cartH.RemoveItem)
	cartAPI.POST("/coupon", cartH.ApplyCoupon)
	cartAPI.DELETE("/coupon", cartH.RemoveCoupon)

	orderH := handler.NewOrderHandler(orders)
	orderAPI := api.Group("/orders", authed)
	orderAPI.POST("", orderH.Place)
	orderAPI.GET("", orderH.ListMine)
	orderAPI.GET("/:id", orderH.Get)
	orderAPI.POST("/:id/cancel", orderH.Cancel)

	reviewAPI := api.Group("/reviews", authed)
	reviewAPI.POST("", reviewH.Create)
	reviewAPI.PUT("/:id", reviewH.Update)
	reviewAPI.DELETE("/:id", reviewH.Delete)

	wishlistH := handler.NewWishlistHandler(wishlist)
	wishlistAPI := api.Group("/wishlist", authed)
	wishlistAPI.GET("", wishlistH.List)
	wishlistAPI.POST("", wishlistH.Add)
	wishlistAPI.DELETE("/:product_id", wishlistH.Remove)

	// Admin
	admin := api.Group("/admin", authed, mid.RequireAdmin())

	admin.POST("/categories", catH.CreateCategory)
	admin.PUT("/categories/:id", catH.UpdateCategory)
	admin.DELETE("/categories/:id", catH.DeleteCategory)
	admin.POST("/subcategories", catH.CreateSubCategory)
	admin.PUT("/subcategories/:id", catH.UpdateSubCategory)
	admin.DELETE("/subcategories/:id", catH.DeleteSubCategory)
	admin.POST("/tags", catH.CreateTag)
	admin.DELETE("/tags/:id", catH.DeleteTag)

	admin.GET("/products/export", productH.ExportProducts)
	admin.POST("/products", productH.CreateProduct)
	admin.PUT("/products/:id", productH.UpdateProduct)
	admin.DELETE("/products/:id", productH.DeleteProduct)

	couponH := handler.NewCouponHandler(coupons)
	admin.GET("/coupons", couponH.List)
	admin.POST("/coupons", couponH.Create)
	admin.GET("/coupons/:id", couponH.Get)
	admin.PUT("/coupons/:id", couponH.Update)
	admin.DELETE("/coupons/:id", couponH.Delete)

	admin.GET("/orders", orderH.AdminList)
	admin.GET("/orders/:id", orderH.Get)
	admin.PATCH("/orders/:id/status", orderH.UpdateStatus)

	admin.GET("/contacts", contactH.List)
	admin.PATCH("/contacts/:id/read", contactH.MarkRead)

	admin.GET("/payment-methods", paymentH.ListAll)
	admin.POST("/payment-methods", paymentH.Create)
	admin.GET("/payment-methods/:id", paymentH.Get)
	admin.PUT("/payment-methods/:id", paymentH.Update)
	admin.DELETE("/payment-methods/:id", paymentH.Delete)

	log.Info("Routes registered", zap.Int("routes", len(e.Routes())))
	return e
}

// rateLimiter throttles per client IP. A non-positive rate disables it.
func rateLimiter(cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RPS <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RPS),
				Burst:     cfg.Burst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Unable to identify client")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			logger.FromContext(c).Warn("Rate limit exceeded", zap.String("client", identifier), zap.String("path", c.Path()))
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please slow down")
		},
	})
}
