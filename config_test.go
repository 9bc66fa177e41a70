package began

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
	c := cfg.Controller()
	if c.Gamma != 0.5 || c.LambdaK != 0.001 {
		t.Errorf("unexpected controller %+v", c)
	}
	if cfg.Architecture.Image != (ImageShape{Channels: 3, Height: 64, Width: 64}) {
		t.Errorf("unexpected image shape %s", cfg.Architecture.Image)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"negative lr", func(c *Config) { c.LearningRate = -1 }},
		{"beta1 one", func(c *Config) { c.Beta1 = 1 }},
		{"zero visualization period", func(c *Config) { c.VisualizeEvery = 0 }},
		{"negative checkpoint period", func(c *Config) { c.CheckpointEvery = -1 }},
		{"zero samples", func(c *Config) { c.NumSamples = 0 }},
		{"gamma above one", func(c *Config) { c.Gamma = 1.5 }},
		{"negative lambda", func(c *Config) { c.LambdaK = -0.1 }},
		{"odd image", func(c *Config) { c.Architecture.Image.Height = 63 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.modify(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
