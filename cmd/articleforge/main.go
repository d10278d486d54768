package main

import (
	"articleforge/cmd/handlers"
	"articleforge/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
