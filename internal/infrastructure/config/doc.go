// Package config handles loading and validating vif runner configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with VIF_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Secrets (MQTT password, InfluxDB token) should be supplied through the
// environment rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/vif.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Agent.URL)
package config
