package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nodefeed/nodefeed/constants"
)

var instance zerolog.Logger

func init() {
	// usable before Init for early config/flag errors
	instance = zerolog.New(console()).With().Timestamp().Logger()
}

func console() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
}

// Init routes logs to stdout and a rotated file under the config folder.
// Must run after viper has the config folder set.
func Init() {
	logDir := filepath.Join(viper.GetString(constants.ConfigFolder), "logs")
	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "nodefeed.log"),
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	instance = zerolog.New(zerolog.MultiLevelWriter(console(), fileWriter)).
		With().Timestamp().Logger()
}

func Debug(v ...any) {
	instance.Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...any) {
	instance.Debug().Msgf(format, v...)
}

func Info(v ...any) {
	instance.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	instance.Info().Msgf(format, v...)
}

func Warn(v ...any) {
	instance.Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...any) {
	instance.Warn().Msgf(format, v...)
}

func Error(v ...any) {
	instance.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	instance.Error().Msgf(format, v...)
}

func Fatal(v ...any) {
	instance.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...any) {
	instance.Fatal().Msgf(format, v...)
}
