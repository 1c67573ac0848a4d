package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log - глобальный логгер приложения.
// До вызова Init пишет в stderr с настройками logrus по умолчанию,
// поэтому пакеты могут логировать и в тестах без инициализации.
var Log = logrus.New()

// Init настраивает глобальный логгер из окружения:
// LOG_LEVEL (по умолчанию info) и LOG_FORMAT (json | text).
// Вызывается один раз в main.go и в TestMain пакетов.
func Init() {
	level, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		level = "info"
	}
	Setup(level, os.Getenv("LOG_FORMAT"), os.Stdout)
}

// Setup - то же, что Init, но с явными параметрами.
// Неизвестный уровень трактуется как info.
func Setup(level, format string, out io.Writer) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// "json" - для сборщиков логов, текст - для разработки
	if strings.EqualFold(format, "json") {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}

	Log.SetOutput(out)
}

// Component возвращает запись с полем component
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
