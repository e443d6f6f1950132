package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"xbanner/handlers/api/banner"
	"xbanner/handlers/api/templates"
	"xbanner/render"
	"xbanner/stores"
	"xbanner/template"
)

func setupRouter(sync *stores.CloudSync, deps template.Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/v2", func(r chi.Router) {
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templates.HandleListTemplates(sync))
			r.Get("/export", templates.HandleExportTemplates(sync))
			r.Post("/import", templates.HandleImportTemplates(sync))
			r.Post("/sync", templates.HandleSyncTemplates(sync))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", templates.HandleGetTemplate(sync))
				r.Put("/", templates.HandleSaveTemplate(sync))
				r.Delete("/", templates.HandleDeleteTemplate(sync))
			})
		})
		r.Route("/banner", func(r chi.Router) {
			r.Post("/render", banner.HandleRenderPreview(deps))
			r.Post("/export", banner.HandleExportBanner(deps))
		})
	})

	return r
}

func waitForShutdown(server *http.Server, sync *stores.CloudSync) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-signalC

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown was not clean")
	}
	// Let in-flight cloud pushes finish before exiting.
	sync.Wait()
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	catalog, err := render.NewCatalog(os.Getenv("FONT_DIR"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build font catalog")
	}
	resolver := render.NewResolver()
	surface := render.NewSurface(catalog, resolver)
	deps := template.Deps{
		Surface: surface,
		Decoder: resolver,
		Fonts:   catalog,
	}

	sync := stores.NewCloudSync(stores.GetStore(), stores.GetRemote())

	server := &http.Server{
		Addr:    *listenAddress,
		Handler: setupRouter(sync, deps),
	}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(server, sync)
}
