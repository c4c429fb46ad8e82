package main

import (
	"log"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/sandeep2k01/BUYFLUX-sub000/internal/config"
	"github.com/sandeep2k01/BUYFLUX-sub000/internal/server"
	pkglog "github.com/sandeep2k01/BUYFLUX-sub000/pkg/log"
)

func main() {
	cfg := config.Load("./config")

	pkglog.InitLogger()
	zap.L().Info("log init success")

	app := iris.New()
	server.RegisterAdminRoutes(app, cfg)

	addr := cfg.AdminServer.Addr()
	log.Printf("admin server listening on %s", addr)
	if err := app.Run(iris.Addr(addr)); err != nil {
		log.Fatalf("failed to run admin server: %v", err)
	}
}
