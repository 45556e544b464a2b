package config

// AgentConfig configures the bundled collection agent.
type AgentConfig struct {
	ServerURL          string
	Token              string
	IntervalSeconds    int
	TopProcesses       int
	CollectThreads     bool
	CollectIO          bool
	CollectHandles     bool
	HTTPTimeoutSeconds int
	LogLevel           string
}

func LoadAgent() *AgentConfig {
	return &AgentConfig{
		ServerURL:          getEnv("AGENT_SERVER_URL", "http://localhost:8080"),
		Token:              getEnv("AGENT_TOKEN", ""),
		IntervalSeconds:    getEnvInt("AGENT_INTERVAL_SECONDS", 5),
		TopProcesses:       getEnvInt("AGENT_TOP_PROCESSES", 12),
		CollectThreads:     getEnv("AGENT_COLLECT_THREADS", "true") == "true",
		CollectIO:          getEnv("AGENT_COLLECT_IO", "true") == "true",
		CollectHandles:     getEnv("AGENT_COLLECT_HANDLES", "true") == "true",
		HTTPTimeoutSeconds: getEnvInt("AGENT_HTTP_TIMEOUT_SECONDS", 10),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}
