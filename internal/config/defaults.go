package config

// DefaultConfig returns the configuration used when no file exists. The
// logs and query services run on different ports in the reference
// deployment.
func DefaultConfig() Config {
	return Config{
		Logs: LogsConfig{
			BaseURL:        "http://127.0.0.1:5000",
			TimeoutSeconds: 30,
		},
		Query: QueryConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 60,
		},
		Display: DisplayConfig{
			RefreshRateMS: 500,
			QueryRowCap:   10,
			TopUsers:      10,
			Timezone:      "Local",
		},
		Sim: SimConfig{
			Listen:         "127.0.0.1:5000",
			Users:          3,
			DevicesPerUser: 2,
			DurationHours:  24,
		},
	}
}
