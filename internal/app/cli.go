package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: http or stdio")
	flags.StringP("host", "H", "", "Host for the HTTP server")
	flags.IntP("port", "p", 0, "Port for the HTTP server")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
	flags.StringP("config", "c", "", "Path to the sources file (default ./seekql.config.yml)")
	flags.StringP("data-dir", "d", "", "Directory holding the index (default ~/.seekql)")
	flags.String("index-name", "", "Index name (default sql_files)")
	flags.String("frontend-dir", "", "Directory with a built frontend to serve at /")
	flags.StringSlice("cors-origins", nil, "Allowed CORS origins (comma-separated)")
	flags.Float64("rate-limit", 0, "Maximum API requests per second, 0 disables limiting")
	flags.String("log-level", "", "Log level: debug, info, warn, or error")
	flags.String("log-format", "", "Log format: text or json (default text on a terminal, json otherwise)")
}
