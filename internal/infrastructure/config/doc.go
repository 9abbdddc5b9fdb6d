// Package config loads and validates the agri gateway configuration.
//
// Values are resolved in order: built-in defaults, the YAML file, an optional
// .env file, then AGRIGW_* environment variables. Validate reports every
// problem found rather than stopping at the first.
//
// Broker credentials and the InfluxDB token should come from the environment
// (or .env), not from a committed config file.
//
// Usage:
//
//	cfg, err := config.Load(config.ResolvePath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.BrokerAddress())
package config
