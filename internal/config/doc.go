// Package config handles configuration loading for query-assistant.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable expansion.
// Every field has a default, so a missing file is not an error for LoadOrDefault.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from QUERY_ASSISTANT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/query-assistant/config.yaml
//  3. ~/.config/query-assistant/config.yaml
//
// # Credentials
//
// Service credentials are not part of this file. They are resolved per
// request from the secrets file or the env file named here:
//
//	credentials:
//	  secrets_file: ".streamlit/secrets.toml"
//	  env_file: ".env"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8501"
//
//	weaviate:
//	  timeout: "30s"       # per ready/meta check at connect
//
//	agent:
//	  host: "https://api.agents.weaviate.io"
//	  collection: "Cookbook"
//	  limit: 20
//	  timeout: ""          # empty waits for completion
//
//	ui:
//	  title: "Loren Cook Query Assistant"
//	  description: "Query the Loren Cook test collection using Weaviate + OpenAI."
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Values may reference the environment with ${VAR_NAME}.
package config
