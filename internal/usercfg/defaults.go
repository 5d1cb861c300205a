package usercfg

// DefaultTokenEnv names the environment variable holding the API token.
const DefaultTokenEnv = "TRAKLY_TOKEN"

func getDefaults() Config {
	return Config{
		SchemaVersion:  CurrentSchemaVersion,
		TokenEnv:       DefaultTokenEnv,
		RequestTimeout: 30,
		MoveTimeout:    15,
	}
}

// SettableKeys lists the keys `config set` accepts.
func SettableKeys() []string {
	return []string{"api_url", "web_url", "project_id", "project_key", "workflow_template_id", "token_env", "fixture_file"}
}
