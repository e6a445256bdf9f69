// Package config loads the main configuration file and provides the
// file-per-entity storage layer used by the registry to persist server
// definitions.
//
// Layout of the configuration directory (default ~/.config/mcpdeck):
//
//	config.yaml    main configuration (see MainConfig)
//	servers/       one yaml file per server definition
package config
