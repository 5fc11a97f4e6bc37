package config

// LabConfig is everything a run needs from the Config Source for one
// environment.
type LabConfig struct {
	Environment string `yaml:"environment" json:"environment"`

	Audience     string `yaml:"aud" json:"aud"`
	BaseURL      string `yaml:"base-url" json:"base-url"`
	ClientID     string `yaml:"client-id" json:"client-id"`
	ClientSecret string `yaml:"-" json:"-"`
	RedirectURL  string `yaml:"redirect-url" json:"redirect-url"`
	State        string `yaml:"state" json:"state"`
	UserPassword string `yaml:"-" json:"-"`

	Browser BrowserConfig `yaml:"webdriver" json:"webdriver"`
}

// BrowserConfig configures the Chrome instance driven by the login robot.
type BrowserConfig struct {
	ChromeDriver string `yaml:"driver" json:"driver"`
	Headless     bool   `yaml:"headless" json:"headless"`
}

// LoadLabConfig resolves every required key, failing on the first one that
// is missing.
func (s *Source) LoadLabConfig() (LabConfig, error) {
	cfg := LabConfig{Environment: s.env}

	fields := []struct {
		name   string
		target *string
	}{
		{FieldAudience, &cfg.Audience},
		{FieldBaseURL, &cfg.BaseURL},
		{FieldClientID, &cfg.ClientID},
		{FieldClientSecret, &cfg.ClientSecret},
		{FieldRedirectURL, &cfg.RedirectURL},
		{FieldState, &cfg.State},
		{FieldUserPassword, &cfg.UserPassword},
	}
	for _, f := range fields {
		value, err := s.RequireField(f.name)
		if err != nil {
			return LabConfig{}, err
		}
		*f.target = value
	}

	driver, err := s.Require(KeyChromeDriver)
	if err != nil {
		return LabConfig{}, err
	}
	headless, err := s.RequireBool(KeyChromeHeadless)
	if err != nil {
		return LabConfig{}, err
	}
	cfg.Browser = BrowserConfig{ChromeDriver: driver, Headless: headless}

	return cfg, nil
}
