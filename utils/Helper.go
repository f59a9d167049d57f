package utils

import (
	"context"
	"errors"
	"fmt"
	mathRand "math/rand"
	"os"
	"regexp"
	"time"
	"unsafe"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phuslu/log"
	"github.com/spf13/viper"
)

var IsTestMode bool = false

// LogDB is assigned by config.ConnectDb once the pool is up; warning-level
// and above messages are mirrored into the service_logs table through it.
var LogDB *pgxpool.Pool

const INFO = "info"
const WARNING = "warning"
const ERROR = "error"
const CRITICAL = "critical"

// Redis cache keys shared between the controller and the drawing engine.
const CacheKeyCurrentWinner = "points_lotto:current_winner"
const CacheKeyQualified = "points_lotto:qualified"

// Logger carries the log payload attached to an error response.
type Logger struct {
	LogLevel    string
	Message     string
	ServiceName string
	Identifier  string
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
const (
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

func RandString(n int) string {
	var src = mathRand.NewSource(time.Now().UnixNano())
	b := make([]byte, n)
	// A src.Int63() generates 63 random bits, enough for letterIdxMax characters!
	for i, cache, remain := n-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return *(*string)(unsafe.Pointer(&b))
}

func InitializeViper(configName string, configType string) {
	viper.SetConfigName(configName)
	if IsTestMode {
		fmt.Println("Running in Test mode...")
		viper.AddConfigPath("../")
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/app")
	}
	viper.AutomaticEnv()
	viper.SetConfigType(configType)
	if viper.AllKeys() == nil {
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal().Err(err).Msg("Error reading config file")
		}
	} else {
		if err := viper.MergeInConfig(); err != nil {
			log.Fatal().Err(err).Msg("Error reading config file 2")
		}
	}
}

// preventing application from crashing abruptly. use defer PanicRecover() on top of the codes that may cause panic
func PanicRecover() {
	if r := recover(); r != nil {
		log.Error().Msgf("Recovered from panic: %v", r)
	}
}

var consoleLogger = log.Logger{
	Level:  log.InfoLevel,
	Caller: 1,
	Writer: &log.ConsoleWriter{
		ColorOutput:    true,
		EndWithMessage: true,
	},
}
var fileLogger = log.Logger{
	Level: log.InfoLevel,
	Writer: &log.FileWriter{
		Filename:     "logs/log.log",
		LocalTime:    true,
		FileMode:     os.FileMode(0600),
		EnsureFolder: true,
	},
}

// LogMessage writes a structured log line and, for warning level and above,
// appends the entry to service_logs so it can be queried over the API.
// Returns the trace id attached to the entry.
func LogMessage(logLevel string, message string, service string, forcedTraceId ...string) string {
	traceId := RandString(12)
	if forcedTraceId != nil && forcedTraceId[0] != "" {
		traceId = forcedTraceId[0]
	}
	logger := &fileLogger
	if log.IsTerminal(os.Stderr.Fd()) {
		logger = &consoleLogger
	}
	logger.Log().Str("Level", logLevel).Str("Service", service).Str("Identifier", traceId).Msg(message)

	if LogDB != nil && logLevel != INFO {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := LogDB.Exec(ctx,
			`insert into service_logs (log_level, service_name, identifier, message) values ($1, $2, $3, $4)`,
			logLevel, service, traceId, message)
		if err != nil {
			logger.Warn().Err(err).Msg("unable to persist log entry")
		}
	}
	return traceId
}

// JsonErrorResponse sends the standard error envelope, logging the attached
// payload when one is provided.
func JsonErrorResponse(c *fiber.Ctx, status int, message string, loggers ...Logger) error {
	for _, l := range loggers {
		service := l.ServiceName
		if service == "" {
			service = "points-lotto"
		}
		LogMessage(l.LogLevel, l.Message, service, l.Identifier)
	}
	c.SendStatus(status)
	return c.JSON(fiber.Map{"status": status, "message": message})
}

// RegexValidation backs the custom `regex` validator tag.
func RegexValidation(fl validator.FieldLevel) bool {
	pattern := fl.Param()
	matched, err := regexp.MatchString(pattern, fl.Field().String())
	if err != nil {
		return false
	}
	return matched
}

// IsErrDuplicate reports whether err is a postgres unique-constraint
// violation, returning the constraint name when it is.
func IsErrDuplicate(err error) (bool, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true, pgErr.ConstraintName
	}
	return false, ""
}
