package config

import "time"

// app constants
const (
	LogLevel  = "info"
	LogFormat = "console"

	Version = "0.3.0"

	FileName = "phile.yaml"
	EnvFile  = ".env"
)

// timing constants
const (
	// DefaultTimeout bounds bounded waits such as the console unit
	// start; supervisor operations themselves carry no timeout.
	DefaultTimeout = 2 * time.Second

	ShutdownTimeout = 5 * time.Second
)

// console constants
const (
	Prompt = "phile> "
)
