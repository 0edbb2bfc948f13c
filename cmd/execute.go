// Package cmd contains all command dispatch and process wiring.
// main.go stays a minimal entry point.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MariDenig/chatBot-hist/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the historiador binary.
// It handles command routing; `serve` is the default.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "chat":
			return executeChat()
		case "serve":
			// default behavior, fall through
		default:
			return fmt.Errorf("unknown command %q (run \"historiador help\")", os.Args[1])
		}
	}

	return executeServe()
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
//
// LOG_JSON switches to JSON output for log collectors.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("historiador v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("historiador - backend do chatbot historiador")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  historiador                Start the HTTP API server (default)")
	fmt.Println("  historiador serve          Start the HTTP API server")
	fmt.Println("  historiador chat           Interactive historian chat in the terminal")
	fmt.Println("  historiador version        Show version information")
	fmt.Println("  historiador help           Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GOOGLE_API_KEY       Required: Gemini API key")
	fmt.Println("  MONGODB_URI          MongoDB connection string (default mongodb://localhost:27017)")
	fmt.Println("  MONGODB_DB           Database name (default chatbotHistoriador)")
	fmt.Println("  OPENWEATHER_API_KEY  Optional: enables weather lookups")
	fmt.Println("  ADMIN_SECRET         Shared secret for /api/admin endpoints")
	fmt.Println("  PORT                 HTTP port (default 3000)")
	fmt.Println("  DEBUG                Optional: enable debug logging")
}
