// Package config provides configuration management for promptlab.
//
// Configuration is loaded from environment variables using the env package
// and passed explicitly to constructors; no other package reads the
// environment. All values have sensible defaults for development use except
// the provider API keys.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
