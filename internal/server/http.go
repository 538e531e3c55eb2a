// Package server assembles the transport servers.
package server

import (
	nethttp "net/http"
	"time"

	"restroom/internal/conf"
	"restroom/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer creates the HTTP server and registers all routes.
func NewHTTPServer(c *conf.Server, photos *service.PhotoService, reviews *service.ReviewService, logger log.Logger) *http.Server {
	opts := []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c.HTTP.Network != "" {
		opts = append(opts, http.Network(c.HTTP.Network))
	}
	if c.HTTP.Addr != "" {
		opts = append(opts, http.Address(c.HTTP.Addr))
	}
	if c.HTTP.TimeoutSeconds > 0 {
		opts = append(opts, http.Timeout(time.Duration(c.HTTP.TimeoutSeconds)*time.Second))
	}
	srv := http.NewServer(opts...)

	r := srv.Route("/")
	r.POST("/v1/reviews", reviews.Create)
	r.GET("/v1/reviews", reviews.List)
	r.DELETE("/v1/reviews/{reviewID}", reviews.Delete)
	r.POST("/v1/reviews/{reviewID}/photos", photos.Upload)
	r.GET("/v1/photos/status", photos.Statuses)
	r.GET("/v1/toilets/{toiletID}/rating", reviews.ToiletRating)

	srv.HandleFunc("/healthz", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte("ok"))
	})

	return srv
}
