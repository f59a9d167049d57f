package routes

import (
	"time"

	"github.com/bigfishlaker/points-lotto/controller"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	html "github.com/gofiber/template/html/v2"
	"github.com/spf13/viper"
)

func InitRoutes() *fiber.App {
	templateDir := viper.GetString("template_path")
	if templateDir == "" {
		templateDir = "./templates"
	}
	engine := html.New(templateDir, ".html")
	app := fiber.New(fiber.Config{
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		Views:        engine,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	v1 := app.Group("/api/v1/")
	v1.Get("/", controller.Index)
	v1.All("/service-status", controller.ServiceStatusCheck)
	v1.Get("/current_winner", controller.GetCurrentWinner)
	v1.Get("/winners", controller.GetAllWinners)
	v1.Get("/qualified", controller.GetQualified)
	v1.Get("/check_qualification", controller.CheckQualification)
	v1.Post("/select_winner", controller.TriggerDraw)
	v1.Get("/winners_report", controller.WinnersReport)
	v1.Get("/logs", controller.GetLogs)
	return app
}
