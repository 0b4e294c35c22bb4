package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/movierank/internal/loadtest"
)

// Default configuration constants.
const (
	defaultUsers         = 20
	defaultMoviesPerUser = 40
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:3000", "Base URL of the service")
		users   = flag.Int("users", defaultUsers, "Number of accounts to register")
		movies  = flag.Int("movies", defaultMoviesPerUser, "Movies created per account")
		workers = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile = flag.String("log", "", "Also write logs to this file")
		verbose = flag.Bool("verbose", false, "Log every rank claim")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp(os.Stdout)
		return
	}

	if err := loadtest.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:       *baseURL,
		Users:         *users,
		MoviesPerUser: *movies,
		Workers:       *workers,
		Timeout:       *timeout,
		Verbose:       *verbose,
	}

	if _, err := loadtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Load test failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
