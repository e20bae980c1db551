package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	// DefaultMigrateTimeout default timeout applied to each key move during a reshard (ms)
	DefaultMigrateTimeout = 1000
	// DefaultMigrateDBIndex default destination database index for moved keys
	DefaultMigrateDBIndex = 0
	// DefaultConnectionTimeout default dial timeout for node connections (ms)
	DefaultConnectionTimeout = 2000
)

// Config regroups all ruster run options. It replaces any process-wide
// state: verbosity and output are carried explicitly into each component.
type Config struct {
	Verbosity          int
	MigrateTimeout     int
	MigrateDB          int
	ConnectionTimeout  int
	RenameCommandsFile string
}

// NewConfig builds and returns new Config instance
func NewConfig() *Config {
	return &Config{
		MigrateTimeout:    DefaultMigrateTimeout,
		MigrateDB:         DefaultMigrateDBIndex,
		ConnectionTimeout: DefaultConnectionTimeout,
	}
}

// AddFlags use to add the run options to the command line flags
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.CountVarP(&c.Verbosity, "verbose", "v", "increase command verbosity (repeatable)")
	fs.IntVar(&c.MigrateTimeout, "timeout", DefaultMigrateTimeout, "timeout (ms) applied to each key move during a reshard")
	fs.IntVar(&c.MigrateDB, "db", DefaultMigrateDBIndex, "destination database index for moved keys")
	fs.IntVar(&c.ConnectionTimeout, "cnx-timeout", DefaultConnectionTimeout, "node connection dial timeout (ms)")
	fs.StringVar(&c.RenameCommandsFile, "rename-command-file", "", "path to a file with rename-command directives to apply to outgoing commands, disabled if empty")
}

// ConnectionTimeoutDuration returns the dial timeout as a duration
func (c *Config) ConnectionTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectionTimeout) * time.Millisecond
}

// String stringer interface
func (c Config) String() string {
	var output string
	output += fmt.Sprintln("[ Ruster Configuration ]")
	output += fmt.Sprintln("- Verbosity:", c.Verbosity)
	output += fmt.Sprintln("- MigrateTimeout:", c.MigrateTimeout)
	output += fmt.Sprintln("- MigrateDB:", c.MigrateDB)
	output += fmt.Sprintln("- ConnectionTimeout:", c.ConnectionTimeout)
	output += fmt.Sprintln("- RenameCommandsFile:", c.RenameCommandsFile)
	return output
}
