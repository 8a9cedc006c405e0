// Package config reads and writes the ssdpd YAML file: engine settings, the
// services this host answers searches for, mDNS browsing and CLI defaults.
//
// The file lives at $SSDPD_CONFIG when set, otherwise config.yaml under
// GetConfigDir ($XDG_CONFIG_HOME/ssdpd or ~/.config/ssdpd, and
// %LOCALAPPDATA%\ssdpd on Windows). LoadFile and SaveFile take an explicit
// path, which is what the --config flag uses.
//
//	version: 1
//	engine:
//	    interface: eth0
//	    max_failures: 5
//	    refresh_interval: 5m
//	advertisements:
//	    - usn: uuid:6f9c1b2e-3c1d-4a0e-9d53-2b8f0d3e4a11::urn:schemas-upnp-org:device:MediaServer:1
//	      location: http://192.168.1.10:8200/rootDesc.xml
//	      service_type: urn:schemas-upnp-org:device:MediaServer:1
//
// Durations are written in Go syntax. Zero or missing engine values take the
// defaults from NewEngineConfig, and every load is validated.
//
// Load caches the default file for the life of the process. Writes are
// atomic. A *Config is not safe for concurrent mutation.
package config
