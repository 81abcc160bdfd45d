package main

import (
	"log"
	"os"

	"github.com/keladiary/core/cmd/api/commands"
)

// @title Kela Diary API
// @version 2.0
// @description Personal productivity service: notes, todos, kanban boards, a derived calendar, AI chat and themes.

// @contact.name Kela Diary
// @contact.url https://kela-diary.vercel.app

// @license.name MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
