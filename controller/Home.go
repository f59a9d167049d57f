package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bigfishlaker/points-lotto/config"
	"github.com/bigfishlaker/points-lotto/lottery"
	"github.com/bigfishlaker/points-lotto/model"
	"github.com/bigfishlaker/points-lotto/pointsmarket"
	"github.com/bigfishlaker/points-lotto/utils"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

var Validate = validator.New()
var ctx = context.Background()

// Wired in main before the app starts listening.
var Engine *lottery.Scheduler
var Board *lottery.Ledger
var Market *pointsmarket.Client

const cacheTTL = time.Minute

func init() {
	err := Validate.RegisterValidation("regex", utils.RegexValidation)
	if err != nil {
		utils.LogMessage("critical", "Init: Error registering regex validation", config.ServiceName)
		panic("Init: Error registering regex validation")
	}
}

func Index(c *fiber.Ctx) error {
	winner, err := Board.CurrentWinner(c.Context())
	if err != nil {
		utils.LogMessage(utils.ERROR, "Index: unable to load current winner, err: "+err.Error(), config.ServiceName)
	}
	data := fiber.Map{
		"ServiceName": config.ServiceName,
		"NextDraw":    Engine.NextDrawTime(time.Now()).Format("2006-01-02 15:04 MST"),
	}
	if winner != nil {
		data["Winner"] = winner
	}
	return c.Render("index", data)
}

func ServiceStatusCheck(c *fiber.Ctx) error {
	state, lastError := Engine.State()
	return c.JSON(fiber.Map{"status": 200, "message": "This API service is running!",
		"drawing_state": state, "last_error": lastError,
		"next_draw": Engine.NextDrawTime(time.Now()).Format(time.RFC3339)})
}

func GetCurrentWinner(c *fiber.Ctx) error {
	if cached, err := config.Redis.Get(c.Context(), utils.CacheKeyCurrentWinner).Result(); err == nil {
		winner := model.Drawing{}
		if json.Unmarshal([]byte(cached), &winner) == nil {
			return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": winner})
		}
	} else if err != redis.Nil {
		utils.LogMessage(utils.WARNING, "GetCurrentWinner: redis read failed, err: "+err.Error(), config.ServiceName)
	}
	winner, err := Board.CurrentWinner(c.Context())
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get current winner failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetCurrentWinner: Unable to get current winner, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	if winner == nil {
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "No drawing has completed yet")
	}
	if payload, err := json.Marshal(winner); err == nil {
		if err := config.Redis.Set(c.Context(), utils.CacheKeyCurrentWinner, payload, cacheTTL).Err(); err != nil {
			utils.LogMessage(utils.WARNING, "GetCurrentWinner: redis write failed, err: "+err.Error(), config.ServiceName)
		}
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": winner})
}

func GetAllWinners(c *fiber.Ctx) error {
	winners, err := Board.AllWinners(c.Context())
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get winners failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetAllWinners: Unable to get winner history, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": winners, "total": len(winners)})
}

// liveQualified recomputes the qualification view from a fresh leaderboard
// fetch against the stored reference snapshot. Read-only, never persists.
func liveQualified(reqCtx context.Context) ([]model.Candidate, map[string]model.LeaderboardUser, error) {
	users, err := Market.Leaderboard(reqCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", lottery.ErrUpstreamUnavailable, err)
	}
	current := make(map[string]int64, len(users))
	byUsername := make(map[string]model.LeaderboardUser, len(users))
	for _, u := range users {
		current[u.Username] = u.TotalPoints
		byUsername[strings.ToLower(u.Username)] = u
	}
	reference, err := lottery.ReferenceSnapshot(reqCtx, config.DB)
	if err != nil {
		return nil, nil, err
	}
	qualified := rankCandidates(lottery.ComputeQualified(current, reference))
	return qualified, byUsername, nil
}

// rankCandidates orders the qualified set by total points descending, ties
// broken by username, and assigns display ranks.
func rankCandidates(qualified []model.Candidate) []model.Candidate {
	sort.Slice(qualified, func(i, j int) bool {
		if qualified[i].TotalPoints != qualified[j].TotalPoints {
			return qualified[i].TotalPoints > qualified[j].TotalPoints
		}
		return qualified[i].Username < qualified[j].Username
	})
	for i := range qualified {
		qualified[i].Rank = i + 1
	}
	return qualified
}

func GetQualified(c *fiber.Ctx) error {
	if cached, err := config.Redis.Get(c.Context(), utils.CacheKeyQualified).Result(); err == nil {
		qualified := []model.Candidate{}
		if json.Unmarshal([]byte(cached), &qualified) == nil {
			return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": qualified, "total": len(qualified)})
		}
	}
	qualified, _, err := liveQualified(c.Context())
	if err != nil {
		if errors.Is(err, lottery.ErrUpstreamUnavailable) {
			return utils.JsonErrorResponse(c, fiber.StatusBadGateway, "Leaderboard provider is unavailable", utils.Logger{
				LogLevel:    utils.ERROR,
				Message:     "GetQualified: upstream fetch failed, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get qualified accounts failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetQualified: Unable to compute qualified accounts, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	if payload, err := json.Marshal(qualified); err == nil {
		if err := config.Redis.Set(c.Context(), utils.CacheKeyQualified, payload, cacheTTL).Err(); err != nil {
			utils.LogMessage(utils.WARNING, "GetQualified: redis write failed, err: "+err.Error(), config.ServiceName)
		}
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": qualified, "total": len(qualified)})
}

func CheckQualification(c *fiber.Ctx) error {
	type QueryData struct {
		Username string `validate:"required,min=1,max=64,regex=^[a-zA-Z0-9_.@-]+$"`
	}
	queryData := QueryData{Username: strings.TrimSpace(c.Query("username"))}
	// Handles get pasted in with the @ prefix, drop it before matching.
	queryData.Username = strings.TrimPrefix(queryData.Username, "@")
	if err := Validate.Struct(queryData); err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusBadRequest, "Please provide a valid username")
	}
	qualified, byUsername, err := liveQualified(c.Context())
	if err != nil {
		if errors.Is(err, lottery.ErrUpstreamUnavailable) {
			return utils.JsonErrorResponse(c, fiber.StatusBadGateway, "Leaderboard provider is unavailable")
		}
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Qualification check failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "CheckQualification: Unable to compute qualification, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	user, found := byUsername[strings.ToLower(queryData.Username)]
	if !found {
		return utils.JsonErrorResponse(c, fiber.StatusNotFound, "Account not found on the leaderboard")
	}
	result := fiber.Map{
		"username":     user.Username,
		"total_points": user.TotalPoints,
		"rank":         user.Rank,
		"qualified":    false,
		"gain":         int64(0),
	}
	for _, candidate := range qualified {
		if strings.EqualFold(candidate.Username, user.Username) {
			result["qualified"] = true
			result["gain"] = candidate.Gain
			break
		}
	}
	if transactions, err := Market.UserTransactions(c.Context(), user.Username); err == nil {
		result["recent_transactions"] = transactions
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": result})
}

func TriggerDraw(c *fiber.Ctx) error {
	drawDate := Engine.CurrentCycleDate()
	drawing, inserted, err := Engine.RunDrawing(c.Context(), drawDate)
	if err != nil {
		switch {
		case errors.Is(err, lottery.ErrSelectionInProgress):
			return utils.JsonErrorResponse(c, fiber.StatusConflict, "A drawing is already in progress")
		case errors.Is(err, lottery.ErrNoQualifiedCandidates):
			return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "No qualified accounts, drawing skipped", "drawing_date": drawDate})
		case errors.Is(err, lottery.ErrUpstreamUnavailable), errors.Is(err, lottery.ErrEmptyLeaderboard):
			return utils.JsonErrorResponse(c, fiber.StatusBadGateway, "Leaderboard provider is unavailable", utils.Logger{
				LogLevel:    utils.ERROR,
				Message:     "TriggerDraw: upstream fetch failed, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		default:
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Drawing failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "TriggerDraw: drawing failed, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
	}
	message := "Winner already selected for this drawing date"
	if inserted {
		message = "Winner selected"
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": message, "data": drawing})
}

func WinnersReport(c *fiber.Ctx) error {
	winners, err := Board.AllWinners(c.Context())
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get winners failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "WinnersReport: Unable to get winner history, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	file := excelize.NewFile()
	sheet := "Winners"
	file.SetSheetName("Sheet1", sheet)
	headers := []string{"Drawing date", "Winner", "Points", "Eligible accounts", "Random seed", "Selection hash", "Selected at"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheet, cell, header)
	}
	for row, winner := range winners {
		values := []interface{}{winner.DrawingDate, winner.Username, winner.Points, winner.TotalEligible,
			winner.RandomSeed, winner.SelectionHash, winner.SelectedAt.Format(time.RFC3339)}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			file.SetCellValue(sheet, cell, value)
		}
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="winners_report_%s.xlsx"`, time.Now().Format("20060102")))
	buffer, err := file.WriteToBuffer()
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Report generation failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "WinnersReport: Unable to write workbook, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	return c.Send(buffer.Bytes())
}

func GetLogs(c *fiber.Ctx) error {
	type ServiceLog struct {
		Id          int       `json:"id"`
		LogLevel    string    `json:"log_level"`
		ServiceName string    `json:"service_name"`
		Identifier  string    `json:"identifier"`
		Message     string    `json:"message"`
		CreatedAt   time.Time `json:"created_at"`
	}
	logs := []ServiceLog{}
	rows, err := config.DB.Query(ctx,
		`select id,log_level,service_name,identifier,message,created_at from service_logs order by created_at desc limit 200`)
	if err != nil {
		return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get logs failed", utils.Logger{
			LogLevel:    utils.CRITICAL,
			Message:     "GetLogs: Unable to get service logs, error: " + err.Error(),
			ServiceName: config.ServiceName,
		})
	}
	defer rows.Close()
	for rows.Next() {
		logEntry := ServiceLog{}
		err = rows.Scan(&logEntry.Id, &logEntry.LogLevel, &logEntry.ServiceName, &logEntry.Identifier, &logEntry.Message, &logEntry.CreatedAt)
		if err != nil {
			return utils.JsonErrorResponse(c, fiber.StatusInternalServerError, "Get logs failed", utils.Logger{
				LogLevel:    utils.CRITICAL,
				Message:     "GetLogs: Unable to scan service logs, error: " + err.Error(),
				ServiceName: config.ServiceName,
			})
		}
		logs = append(logs, logEntry)
	}
	return c.JSON(fiber.Map{"status": fiber.StatusOK, "message": "success", "data": logs})
}
