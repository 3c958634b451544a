// Package config loads service configuration with viper.
//
// Values come from a YAML file found next to the binary's cmd directory (or
// passed explicitly), then from a .env file and the process environment.
// Environment keys map onto nested config keys by splitting on underscores,
// so SERVER_PORT sets server.port and LLM_API_KEY sets llm.api_key.
//
//	var cfg app.Config
//	err := config.LoadConfig("captiongen", &cfg,
//		config.WithConfigFile(path),
//		config.WithEnvAliases(map[string]string{"MODEL_NAME": "llm.model"}))
package config
