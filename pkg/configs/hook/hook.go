package hook

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a hook config file.
func Load(filename string) (Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type Config struct {
	// hooks around a job step gets READY.
	JobStepReady WebHook `yaml:"jobstep-ready,omitempty"`

	// hooks around an order gets PLANNED.
	OrderPlanned WebHook `yaml:"order-planned,omitempty"`
}

// WebHook is a set of URLs called before/after something happens.
type WebHook struct {
	Before []*url.URL
	After  []*url.URL
}

func (wh *WebHook) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Before []string `yaml:"before"`
		After  []string `yaml:"after"`
	}{}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	before, err := parseURLs(raw.Before)
	if err != nil {
		return fmt.Errorf("before: %w", err)
	}
	after, err := parseURLs(raw.After)
	if err != nil {
		return fmt.Errorf("after: %w", err)
	}
	wh.Before, wh.After = before, after
	return nil
}

func parseURLs(raw []string) ([]*url.URL, error) {
	ret := make([]*url.URL, 0, len(raw))
	for _, u := range raw {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, err
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("%s is not http(s) URL", u)
		}
		ret = append(ret, parsed)
	}
	return ret, nil
}
