package config

const (
	defaultConfigPath   = "~/.config/esparse/config.toml"
	defaultOutputDir    = "~/.local/share/esparse/output"
	defaultLogDir       = "~/.local/share/esparse/logs"
	defaultDatabaseName = "records.db"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"

	FormatSQLite = "sqlite"
	FormatJSONL  = "jsonl"
	FormatCBOR   = "cbor"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Output: Output{
			Formats: []string{FormatSQLite},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
