package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/bigfishlaker/points-lotto/config"
	"github.com/bigfishlaker/points-lotto/controller"
	"github.com/bigfishlaker/points-lotto/lottery"
	"github.com/bigfishlaker/points-lotto/pointsmarket"
	"github.com/bigfishlaker/points-lotto/routes"
	"github.com/bigfishlaker/points-lotto/utils"

	"github.com/spf13/viper"
)

func main() {
	fmt.Println("Hello - points-lotto: 9000")
	utils.InitializeViper("config", "yml")
	config.InitializeConfig()
	config.ConnectDb()
	defer config.DB.Close()

	controller.Board = lottery.NewLedger(config.DB)
	controller.Market = pointsmarket.NewClient()
	controller.Engine = lottery.NewScheduler(config.DB, controller.Board, controller.Market)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go controller.Engine.Run(ctx)

	server := routes.InitRoutes()
	go func() {
		<-ctx.Done()
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			utils.LogMessage(utils.ERROR, "shutdown: "+err.Error(), config.ServiceName)
		}
	}()

	listen := viper.GetString("listen")
	if listen == "" {
		listen = "0.0.0.0:9000"
	}
	if err := server.Listen(listen); err != nil {
		utils.LogMessage(utils.CRITICAL, "server stopped: "+err.Error(), config.ServiceName)
	}
}
