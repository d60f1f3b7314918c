// Package supervisor reconciles a declarative JSON config file against
// a set of independently running recording sessions: hot reload,
// per-channel debounce, a memdb-backed channel registry, metrics, and
// notifications. Grounded on autofc2.py's AutoFC2 class and the
// teacher's updater.Updater reconciliation loop.
package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"autofc2/internal/metrics"
	"autofc2/internal/notify"
	"autofc2/internal/recorder"
)

// FileConfig is the on-disk shape of the supervisor's config document.
type FileConfig struct {
	AutoFC2 struct {
		LogLevel     string                `json:"log_level"`
		DebounceTime float64               `json:"debounce_time"`
		Metrics      *metrics.ServerConfig `json:"metrics"`
	} `json:"autofc2"`
	DefaultParams paramsDoc              `json:"default_params"`
	Channels      map[string]paramsDoc   `json:"channels"`
	Notifications []notify.Target        `json:"notifications"`
}

// paramsDoc is the JSON shape of one session parameter set, matching
// FC2LiveDL's DEFAULT_PARAMS keys exactly so existing config documents
// from the original tool load unchanged. Pointer fields distinguish
// "absent" (inherit default) from an explicit zero value.
type paramsDoc struct {
	Quality               *string  `json:"quality,omitempty"`
	Latency               *string  `json:"latency,omitempty"`
	Threads               *int     `json:"threads,omitempty"`
	Outtmpl               *string  `json:"outtmpl,omitempty"`
	WriteChat             *bool    `json:"write_chat,omitempty"`
	WriteInfoJSON         *bool    `json:"write_info_json,omitempty"`
	WriteThumbnail        *bool    `json:"write_thumbnail,omitempty"`
	WaitForLive           *bool    `json:"wait_for_live,omitempty"`
	WaitForQualityTimeout *float64 `json:"wait_for_quality_timeout,omitempty"`
	WaitPollInterval      *int     `json:"wait_poll_interval,omitempty"`
	CookiesFile           *string  `json:"cookies_file,omitempty"`
	Remux                 *bool    `json:"remux,omitempty"`
	KeepIntermediates     *bool    `json:"keep_intermediates,omitempty"`
	ExtractAudio          *bool    `json:"extract_audio,omitempty"`
	TrustEnvProxy         *bool    `json:"trust_env_proxy,omitempty"`
	DumpWebsocket         *bool    `json:"dump_websocket,omitempty"`
}

func applyParamsDoc(p *recorder.Params, doc paramsDoc) {
	if doc.Quality != nil {
		p.Quality = *doc.Quality
	}
	if doc.Latency != nil {
		p.Latency = *doc.Latency
	}
	if doc.Threads != nil {
		p.Threads = *doc.Threads
	}
	if doc.Outtmpl != nil {
		p.OutputTemplate = *doc.Outtmpl
	}
	if doc.WriteChat != nil {
		p.WriteChat = *doc.WriteChat
	}
	if doc.WriteInfoJSON != nil {
		p.WriteInfoJSON = *doc.WriteInfoJSON
	}
	if doc.WriteThumbnail != nil {
		p.WriteThumbnail = *doc.WriteThumbnail
	}
	if doc.WaitForLive != nil {
		p.WaitForLive = *doc.WaitForLive
	}
	if doc.WaitForQualityTimeout != nil {
		p.WaitForQualityTimeout = time.Duration(*doc.WaitForQualityTimeout * float64(time.Second))
	}
	if doc.WaitPollInterval != nil {
		p.WaitPollInterval = *doc.WaitPollInterval
	}
	if doc.CookiesFile != nil {
		p.CookiesFile = *doc.CookiesFile
	}
	if doc.Remux != nil {
		p.Remux = *doc.Remux
	}
	if doc.KeepIntermediates != nil {
		p.KeepIntermediates = *doc.KeepIntermediates
	}
	if doc.ExtractAudio != nil {
		p.ExtractAudio = *doc.ExtractAudio
	}
	if doc.TrustEnvProxy != nil {
		p.TrustEnvProxy = *doc.TrustEnvProxy
	}
	if doc.DumpWebsocket != nil {
		p.DumpWebsocket = *doc.DumpWebsocket
	}
}

// ChannelParams computes the effective parameter set for channelID:
// DefaultParams(), deep-merged with cfg.DefaultParams, then shallow-
// overridden by cfg.Channels[channelID].
func (cfg *FileConfig) ChannelParams(channelID string) recorder.Params {
	p := recorder.DefaultParams()
	applyParamsDoc(&p, cfg.DefaultParams)
	if override, ok := cfg.Channels[channelID]; ok {
		applyParamsDoc(&p, override)
	}
	return p
}

// ConfigLoader re-reads a JSON config file, retaining the last
// successfully parsed document across transient read/parse failures. A
// failure on the very first load is fatal, matching
// AutoFC2.get_config.
type ConfigLoader struct {
	path string

	mu   sync.Mutex
	last *FileConfig
}

// NewConfigLoader constructs a loader bound to path. It does not read
// the file until Load is first called.
func NewConfigLoader(path string) *ConfigLoader {
	return &ConfigLoader{path: path}
}

// Load re-reads and parses the config file. If reading or parsing
// fails and a previous document was already loaded, that document is
// returned instead of the error.
func (c *ConfigLoader) Load() (*FileConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, err := c.readFile()
	if err != nil {
		if c.last == nil {
			return nil, fmt.Errorf("supervisor: reading config file: %w", err)
		}
		return c.last, nil
	}

	c.last = cfg
	return cfg, nil
}

func (c *ConfigLoader) readFile() (*FileConfig, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
