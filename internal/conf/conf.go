package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap is the root of configs/config.yaml.
type Bootstrap struct {
	Server     *Server     `json:"server"`
	Data       *Data       `json:"data"`
	Auth       *Auth       `json:"auth"`
	Source     *Source     `json:"source"`
	DataForSEO *DataForSEO `json:"dataforseo"`
	OpenAI     *OpenAI     `json:"openai"`
	Ingest     *Ingest     `json:"ingest"`
	Annotate   *Annotate   `json:"annotate"`
	Kafka      *Kafka      `json:"kafka"`
	Log        *Log        `json:"log"`
	Trace      *Trace      `json:"trace"`
}

type Server struct {
	Http *Server_HTTP `json:"http"`
}

type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
}

type Data_Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

type Data_Redis struct {
	Addr         string    `json:"addr"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

type Auth struct {
	Token string `json:"token"`
}

// Source selects the ReviewSource and Annotator implementations.
type Source struct {
	// Mode is "live" or "fixture".
	Mode       string `json:"mode"`
	FixtureDir string `json:"fixture_dir"`
}

type DataForSEO struct {
	BaseUrl            string    `json:"base_url"`
	Login              string    `json:"login"`
	Password           string    `json:"password"`
	Timeout            *Duration `json:"timeout"`
	TripadvisorTimeout *Duration `json:"tripadvisor_timeout"`
	PollInterval       *Duration `json:"poll_interval"`
	Priority           int32     `json:"priority"`
	LocationName       string    `json:"location_name"`
	LocationCode       int32     `json:"location_code"`
	LanguageCode       string    `json:"language_code"`
	PendingTtl         *Duration `json:"pending_ttl"`
}

type OpenAI struct {
	BaseUrl         string    `json:"base_url"`
	ApiKey          string    `json:"api_key"`
	Model           string    `json:"model"`
	Timeout         *Duration `json:"timeout"`
	MaxRetries      int32     `json:"max_retries"`
	BackoffBase     *Duration `json:"backoff_base"`
	BackoffMax      *Duration `json:"backoff_max"`
	MaxReviewChars  int32     `json:"max_review_chars"`
	MaxOutputTokens int32     `json:"max_output_tokens"`
}

type Ingest struct {
	DefaultDepth     int32 `json:"default_depth"`
	DefaultSinceDays int32 `json:"default_since_days"`
}

type Annotate struct {
	DefaultLimit int32 `json:"default_limit"`
	MaxLimit     int32 `json:"max_limit"`
	BatchSize    int32 `json:"batch_size"`
}

type Kafka struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	GroupId string   `json:"group_id"`
}

type Log struct {
	Mode string `json:"mode"`
}

type Trace struct {
	// Exporter is "", "stdout" or "otlp".
	Exporter    string  `json:"exporter"`
	Endpoint    string  `json:"endpoint"`
	SampleRatio float64 `json:"sample_ratio"`
}

// Duration decodes "1.5s"-style strings or plain seconds.
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration returns the wrapped value; a nil receiver yields zero.
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	case nil:
		d.Duration = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}
