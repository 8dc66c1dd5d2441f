package main

import (
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/util"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
