package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/IvanBrykalov/ringcache/cache"
)

const (
	// wrap is the number of characters to wrap the help text at
	wrap int = 50
)

// Config is the cache configuration shared by all commands.
type Config struct {
	Nodes            []string
	MaxCacheSize     int
	VirtualNodes     int
	Replication      bool
	ReadFallback     bool
	MigrationRetries int
	LogLevel         string
}

// setupCacheFlags adds the cache flags to cmd as persistent flags.
func setupCacheFlags(cmd *cobra.Command) {
	key := "nodes"
	cmd.PersistentFlags().String(key, "node-1,node-2,node-3", wrapString("Comma separated list of initial node ids"))

	key = "max-cache-size"
	cmd.PersistentFlags().Int(key, cache.DefaultMaxCacheSize, wrapString("Maximum number of entries per node store"))

	key = "vnodes"
	cmd.PersistentFlags().Int(key, cache.DefaultVirtualNodes, wrapString("Virtual nodes (ring points) per node"))

	key = "replication"
	cmd.PersistentFlags().Bool(key, false, wrapString("Mirror every write onto the next node in id order"))

	key = "read-fallback"
	cmd.PersistentFlags().Bool(key, false, wrapString("Serve primary misses from the secondary store (needs --replication)"))

	key = "migration-retries"
	cmd.PersistentFlags().Int(key, cache.DefaultMigrationRetries, wrapString("Extra transfer attempts per entry during redistribution (-1 disables retries)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", wrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// initConfig reads env files and binds RINGCACHE_* environment variables.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("ringcache")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// processConfig binds cmd's flags and reads the shared configuration.
func processConfig(cmd *cobra.Command) (*Config, error) {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	nodes, err := parseNodes(viper.GetString("nodes"))
	if err != nil {
		return nil, err
	}
	conf := &Config{
		Nodes:            nodes,
		MaxCacheSize:     viper.GetInt("max-cache-size"),
		VirtualNodes:     viper.GetInt("vnodes"),
		Replication:      viper.GetBool("replication"),
		ReadFallback:     viper.GetBool("read-fallback"),
		MigrationRetries: viper.GetInt("migration-retries"),
		LogLevel:         viper.GetString("log-level"),
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// parseNodes splits a comma separated node list, dropping blanks.
// Duplicates are rejected.
func parseNodes(s string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate node id %q", id)
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// Validate checks ranges the engine would otherwise panic on.
func (c *Config) Validate() error {
	if c.MaxCacheSize <= 0 {
		return fmt.Errorf("max-cache-size must be > 0, got %d", c.MaxCacheSize)
	}
	if c.VirtualNodes <= 0 {
		return fmt.Errorf("vnodes must be > 0, got %d", c.VirtualNodes)
	}
	if c.ReadFallback && !c.Replication {
		return fmt.Errorf("read-fallback needs replication")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Options converts the configuration into cache options.
func (c *Config) Options() cache.Options[string] {
	retries := c.MigrationRetries
	if retries == 0 {
		retries = -1 // explicit zero on the command line means no retries
	}
	return cache.Options[string]{
		MaxCacheSize:            c.MaxCacheSize,
		VirtualNodesPerNode:     c.VirtualNodes,
		ReplicationEnabled:      c.Replication,
		ReadFallbackToSecondary: c.ReadFallback,
		MigrationRetries:        retries,
		Logger:                  logger.GetLogger("ringcache"),
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Ring")
	addField("Nodes", strings.Join(c.Nodes, ", "))
	addField("Virtual Nodes", fmt.Sprintf("%d", c.VirtualNodes))

	addSection("Stores")
	addField("Max Cache Size", fmt.Sprintf("%d", c.MaxCacheSize))
	addField("Replication", fmt.Sprintf("%t", c.Replication))
	addField("Read Fallback", fmt.Sprintf("%t", c.ReadFallback))
	addField("Migration Retries", fmt.Sprintf("%d", c.MigrationRetries))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// wrapString wraps a string at wrap characters
func wrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}
