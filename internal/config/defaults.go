package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Assistant: AssistantConfig{
			Provider:    "gemini",
			APIBase:     GeminiAPIBase,
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
		},
		Session: SessionConfig{
			IdleMinutes: 60,
			MaxSessions: 1000,
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    8080,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
		Export: ExportConfig{
			Output:         "babas-do-futuro.pdf",
			TimeoutSeconds: 60,
		},
	}
}
