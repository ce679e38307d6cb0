// Package config loads and validates coopd configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then COOP_* environment variables. Validate reports every problem in a
// single error so a broken deployment can be fixed in one pass.
//
// Secrets (MQTT password, InfluxDB token, JWT secret) belong in the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Session.Name)
package config
