// Package config loads urlobserver configuration with viper.
//
// The file may be YAML or JSON. Every scalar key can be overridden from the
// environment with the URLOBSERVER_ prefix, dots becoming underscores.
//
// # Configuration File Structure
//
//	observer:
//	  dwell_time: 2s
//	  debug: false
//	  encode_space_as_plus: true
//	routes:
//	  - name: user
//	    pattern: ^/users/(?P<id>[^/]+)$
//	server:
//	  addr: ":8080"
//	  path: /ws
//	  metrics_addr: ":9090"
//	  allowed_origins: ["https://app.example.com"]
//	archive:
//	  bucket: audit-trails
//	  prefix: urlobserver/
//	  region: eu-west-1
//	logging:
//	  level: info
//	  format: text
//
// # Usage
//
//	cfg, err := config.Load("urlobserver.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	patterns, _ := cfg.Patterns()
//
// URLOBSERVER_OBSERVER_DWELL_TIME=500ms overrides observer.dwell_time.
package config
