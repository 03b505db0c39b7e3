// Package selectors provides post-content selector loading and management.
package selectors

import (
	"embed"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectorsFS embed.FS

// Selectors contains the CSS selectors used to locate post content.
type Selectors struct {
	PostRoot  string `yaml:"post_root"`
	PostText  string `yaml:"post_text"`
	PostMedia string `yaml:"post_media"`
	PostVideo string `yaml:"post_video"`
}

var (
	instance *Selectors
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Selectors instance.
// Selectors are loaded from the embedded selectors.yaml file.
func Get() *Selectors {
	once.Do(func() {
		instance, loadErr = load()
		if loadErr != nil {
			log.Error().Err(loadErr).Msg("Failed to load selectors, using defaults")
			instance = defaultSelectors()
		}
	})
	return instance
}

// load reads selectors from the embedded YAML file.
func load() (*Selectors, error) {
	data, err := defaultSelectorsFS.ReadFile("selectors.yaml")
	if err != nil {
		return nil, err
	}

	var s Selectors
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	log.Debug().
		Str("post_root", s.PostRoot).
		Str("post_text", s.PostText).
		Msg("Selectors loaded")

	return &s, nil
}

// defaultSelectors returns hardcoded fallback selectors. They mirror
// the embedded YAML so a broken embed never takes the service down.
func defaultSelectors() *Selectors {
	return &Selectors{
		PostRoot:  `article[data-testid="tweet"]`,
		PostText:  `div[data-testid="tweetText"]`,
		PostMedia: `div[data-testid="tweetPhoto"] img`,
		PostVideo: `div[data-testid="videoPlayer"] video`,
	}
}
