package systems

import (
	"os"
	"testing"

	"waypoint-server/pkg/logger"
)

func TestMain(m *testing.M) {
	// Логгер нужен до запуска тестов
	logger.Init()

	os.Exit(m.Run())
}
