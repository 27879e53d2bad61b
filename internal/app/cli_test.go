package app

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	// Verify all flags are registered
	expectedFlags := []string{
		"transport",
		"host",
		"port",
		"auth-type",
		"auth-basic-username",
		"auth-basic-password",
		"auth-api-keys",
		"config",
		"data-dir",
		"index-name",
		"frontend-dir",
		"cors-origins",
		"rate-limit",
		"log-level",
		"log-format",
	}

	for _, name := range expectedFlags {
		if flags.Lookup(name) == nil {
			t.Errorf("Expected flag %q to be registered", name)
		}
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	shorthandFlags := map[string]string{
		"transport":           "t",
		"host":                "H",
		"port":                "p",
		"auth-type":           "a",
		"auth-basic-username": "u",
		"auth-basic-password": "P",
		"auth-api-keys":       "k",
		"config":              "c",
		"data-dir":            "d",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	err := flags.Parse([]string{
		"--transport", "stdio",
		"--host", "localhost",
		"--port", "9090",
		"--auth-type", "basic",
		"--data-dir", "/tmp/seekql",
		"--rate-limit", "2.5",
		"--cors-origins", "http://a,http://b",
	})
	if err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	transport, _ := flags.GetString("transport")
	if transport != "stdio" {
		t.Errorf("Expected transport 'stdio', got '%s'", transport)
	}

	host, _ := flags.GetString("host")
	if host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", host)
	}

	port, _ := flags.GetInt("port")
	if port != 9090 {
		t.Errorf("Expected port 9090, got %d", port)
	}

	authType, _ := flags.GetString("auth-type")
	if authType != "basic" {
		t.Errorf("Expected auth-type 'basic', got '%s'", authType)
	}

	dataDir, _ := flags.GetString("data-dir")
	if dataDir != "/tmp/seekql" {
		t.Errorf("Expected data-dir '/tmp/seekql', got '%s'", dataDir)
	}

	rate, _ := flags.GetFloat64("rate-limit")
	if rate != 2.5 {
		t.Errorf("Expected rate-limit 2.5, got %v", rate)
	}

	origins, _ := flags.GetStringSlice("cors-origins")
	if len(origins) != 2 || origins[0] != "http://a" || origins[1] != "http://b" {
		t.Errorf("Expected two CORS origins, got %v", origins)
	}
}
