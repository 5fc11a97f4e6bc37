// Package config provides configuration management for labbot.
//
// Two kinds of configuration exist:
//
// # Lab properties
//
// A Source resolves the properties of one lab environment from a config file
// (YAML, JSON or TOML) through viper. The environment name is the file base
// name, so lab.yaml provides:
//
//	lab:
//	  aud: https://sandbox-api.va.gov/services/fhir/v0/r4
//	  base-url: https://sandbox-api.va.gov/services/fhir/v0/r4
//	  client-id: 0oa1...
//	  client-secret: ...
//	  redirect-url: https://app/callback
//	  state: abc123
//	  user-password: ...
//	webdriver:
//	  chrome:
//	    driver: /usr/local/bin/chromedriver
//	    headless: true
//
// Every key can also be supplied as an environment variable, with dots and
// dashes replaced by underscores (LAB_BASE_URL, WEBDRIVER_CHROME_HEADLESS).
// Environment variables take precedence over the file, and are the only
// source when the file does not exist.
// A required key that is still blank yields a *ConfigurationError naming it.
//
// # Run settings
//
// Settings hold the tuning knobs (pool size, phase bound, error policy, TLS)
// and are parsed from LABBOT_* environment variables with caarlos0/env.
package config
