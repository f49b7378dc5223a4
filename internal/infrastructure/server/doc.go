// Package server wires configuration, logging, metrics, the selector
// registry and the resolver into the HTTP service.
//
// Server Lifecycle:
//  1. Load configuration from environment, TOML file and flags
//  2. Initialize logger and metrics
//  3. Create the registry and resolver
//  4. Setup HTTP routes and middleware
//  5. Load every configuration and start hot reloading
//  6. Serve until the context is cancelled, then shut down gracefully
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
