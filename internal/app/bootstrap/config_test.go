package bootstrap

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:            "mongodb://localhost:27017",
		MongoDatabase:       "moviematch",
		OpenAIBaseURL:       "https://api.openai.com/v1",
		OpenAIKeyEnv:        "OPENAI_API_KEY",
		OpenAITimeout:       30 * time.Second,
		SimilarityThreshold: 0,
		MatchCount:          3,
		ExplainMaxTokens:    150,
		ExplainTemperature:  0.7,
		LateJoinPolicy:      "reject",
		VectorSearchMode:    "scan",
	}
}

func TestValidateConfig_Accepts(t *testing.T) {
	if err := ValidateConfig(nil, validAppConfig(), testLogger()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	atlas := validAppConfig()
	atlas.VectorSearchMode = "atlas"
	atlas.AtlasIndexName = "movies_embedding"
	if err := ValidateConfig(nil, atlas, testLogger()); err != nil {
		t.Errorf("atlas config rejected: %v", err)
	}

	spectator := validAppConfig()
	spectator.LateJoinPolicy = "spectator"
	if err := ValidateConfig(nil, spectator, testLogger()); err != nil {
		t.Errorf("spectator policy rejected: %v", err)
	}
}

func TestValidateConfig_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"bad mongo uri", func(c *AppConfig) { c.MongoURI = "not-a-uri" }},
		{"threshold above one", func(c *AppConfig) { c.SimilarityThreshold = 1.5 }},
		{"threshold below minus one", func(c *AppConfig) { c.SimilarityThreshold = -2 }},
		{"zero match count", func(c *AppConfig) { c.MatchCount = 0 }},
		{"negative temperature", func(c *AppConfig) { c.ExplainTemperature = -0.1 }},
		{"unknown late join policy", func(c *AppConfig) { c.LateJoinPolicy = "queue" }},
		{"unknown search mode", func(c *AppConfig) { c.VectorSearchMode = "faiss" }},
		{"atlas without index name", func(c *AppConfig) {
			c.VectorSearchMode = "atlas"
			c.AtlasIndexName = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validAppConfig()
			tc.mutate(&cfg)
			if err := ValidateConfig(nil, cfg, testLogger()); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestParseFloatKey(t *testing.T) {
	v, err := parseFloatKey("similarity_threshold", "0.25")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if v != 0.25 {
		t.Errorf("got %g, want 0.25", v)
	}

	if _, err := parseFloatKey("explain_temperature", "warm"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}
