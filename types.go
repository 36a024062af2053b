package nanoindex

// AddResult is the response shape for add().
type AddResult struct {
	Inserted int `json:"inserted"`
	Total    int `json:"total"`
}

// TrainResult is the response shape for train().
type TrainResult struct {
	K        int `json:"k"`
	NTrained int `json:"n_trained"`
}

// SearchHit is a single ranked result within a SearchResult.
type SearchHit struct {
	ID       int64   `json:"id"`
	Distance float32 `json:"distance"`
}

// SearchResult is the response shape for search().
type SearchResult struct {
	Results   []SearchHit `json:"results"`
	LatencyMs float64     `json:"latency_ms"`
	Strategy  string      `json:"strategy"`
}

// ArmStatSnapshot is one arm's entry within AgentStats.
type ArmStatSnapshot struct {
	Pulls        int64   `json:"pulls"`
	TotalReward  float64 `json:"total_reward"`
	AvgReward    float64 `json:"avg_reward"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// AgentStats is the response shape for agent_stats().
type AgentStats struct {
	Algorithm  string                     `json:"algorithm"`
	Epsilon    float64                    `json:"epsilon"`
	TotalPulls int64                      `json:"total_pulls"`
	Statistics map[string]ArmStatSnapshot `json:"statistics"`
}
