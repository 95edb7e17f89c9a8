// Package config lê as configurações de processo dos binários via viper.
//
// As chaves são planas e batem 1:1 com as variáveis de ambiente
// (listen_addr <-> LISTEN_ADDR). Um arquivo YAML/TOML opcional pode definir as
// mesmas chaves; variável de ambiente tem precedência sobre o arquivo.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Gateway são as configurações do binário cmd/gateway.
type Gateway struct {
	ListenAddr  string
	UpstreamURL string
	HealthPath  string
	LogLevel    string

	KeyHeader      string
	TrustXFF       bool
	SolutionHeader string
	AddHeaders     bool

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
	ForwardTimeout     time.Duration

	Redis     Redis
	Prefix    string
	RecordTTL time.Duration

	Window         time.Duration
	CleanupHorizon time.Duration
	NormalBudget   int
	DegradedBudget int
	MaxViolations  int
	BanDuration    time.Duration
	StoreTimeout   time.Duration
	HealthTimeout  time.Duration

	BanCheckEnabled   bool
	ShieldEnabled     bool
	AdaptiveEnabled   bool
	ViolationsEnabled bool

	StatsEnabled   bool
	StatsPrefix    string
	StatsTTL       time.Duration
	StatsBucket    string
	StatsTrackKeys bool

	// StatsTrackRoutes liga a contagem por rota; StatsRoutePrefixes limita os rótulos.
	StatsTrackRoutes   bool
	StatsRoutePrefixes []string
	MetricsEnabled     bool
}

// ControlPlane são as configurações do binário cmd/controlplane.
type ControlPlane struct {
	ListenAddr   string
	LogLevel     string
	AdminKey     string
	AllowOrigin  string
	Redis        Redis
	Prefix       string
	StatsPrefix  string
	RateRPS      float64
	RateBurst    int
	StoreTimeout time.Duration
	BanDuration  time.Duration
}

// New cria um viper isolado lendo env e, se informado, o arquivo de configuração.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return v, nil
}

func setGatewayDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("health_path", "/health")
	v.SetDefault("log_level", "info")
	v.SetDefault("trust_xff", false)
	v.SetDefault("solution_header", "X-Puzzle-Solution")
	v.SetDefault("add_ratelimit_headers", false)
	v.SetDefault("concurrency_max", 100)
	v.SetDefault("concurrency_timeout", "0s")
	v.SetDefault("forward_timeout", "3s")

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "flux")
	v.SetDefault("record_ttl", "0s")

	v.SetDefault("window", "10s")
	v.SetDefault("cleanup_horizon", "60s")
	v.SetDefault("normal_budget", 5)
	v.SetDefault("degraded_budget", 2)
	v.SetDefault("max_violations", 50)
	v.SetDefault("ban_duration", "24h")
	v.SetDefault("store_timeout", "1s")
	v.SetDefault("health_timeout", "500ms")

	v.SetDefault("ban_check_enabled", true)
	v.SetDefault("shield_enabled", true)
	v.SetDefault("adaptive_enabled", true)
	v.SetDefault("violations_enabled", true)

	v.SetDefault("stats_enabled", false)
	v.SetDefault("stats_prefix", "flux:stats")
	v.SetDefault("stats_ttl", "24h")
	v.SetDefault("stats_bucket", "minute")
	v.SetDefault("stats_track_keys", false)
	v.SetDefault("stats_track_routes", false)
	v.SetDefault("metrics_enabled", true)
}

// LoadGateway lê e valida as configurações do gateway.
func LoadGateway(v *viper.Viper) (Gateway, error) {
	setGatewayDefaults(v)

	cfg := Gateway{
		ListenAddr:  v.GetString("listen_addr"),
		UpstreamURL: strings.TrimSpace(v.GetString("upstream_url")),
		HealthPath:  v.GetString("health_path"),
		LogLevel:    v.GetString("log_level"),

		KeyHeader:      v.GetString("key_header"),
		TrustXFF:       v.GetBool("trust_xff"),
		SolutionHeader: v.GetString("solution_header"),
		AddHeaders:     v.GetBool("add_ratelimit_headers"),

		ConcurrencyMax:     v.GetInt("concurrency_max"),
		ConcurrencyTimeout: v.GetDuration("concurrency_timeout"),
		ForwardTimeout:     v.GetDuration("forward_timeout"),

		Redis:     readRedis(v),
		Prefix:    v.GetString("redis_prefix"),
		RecordTTL: v.GetDuration("record_ttl"),

		Window:         v.GetDuration("window"),
		CleanupHorizon: v.GetDuration("cleanup_horizon"),
		NormalBudget:   v.GetInt("normal_budget"),
		DegradedBudget: v.GetInt("degraded_budget"),
		MaxViolations:  v.GetInt("max_violations"),
		BanDuration:    v.GetDuration("ban_duration"),
		StoreTimeout:   v.GetDuration("store_timeout"),
		HealthTimeout:  v.GetDuration("health_timeout"),

		BanCheckEnabled:   v.GetBool("ban_check_enabled"),
		ShieldEnabled:     v.GetBool("shield_enabled"),
		AdaptiveEnabled:   v.GetBool("adaptive_enabled"),
		ViolationsEnabled: v.GetBool("violations_enabled"),

		StatsEnabled:   v.GetBool("stats_enabled"),
		StatsPrefix:    v.GetString("stats_prefix"),
		StatsTTL:       v.GetDuration("stats_ttl"),
		StatsBucket:    v.GetString("stats_bucket"),
		StatsTrackKeys: v.GetBool("stats_track_keys"),

		StatsTrackRoutes:   v.GetBool("stats_track_routes"),
		StatsRoutePrefixes: splitList(v.GetStringSlice("stats_route_prefixes")),
		MetricsEnabled:     v.GetBool("metrics_enabled"),
	}
	if err := cfg.Validate(); err != nil {
		return Gateway{}, err
	}
	return cfg, nil
}

func (c Gateway) Validate() error {
	if c.UpstreamURL == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("UPSTREAM_URL must be an absolute URL, got %q", c.UpstreamURL)
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("REDIS_ADDR is required")
	}
	if c.Window < time.Second {
		return errors.New("WINDOW must be >= 1s")
	}
	if c.CleanupHorizon < c.Window {
		return errors.New("CLEANUP_HORIZON must be >= WINDOW")
	}
	if c.NormalBudget <= 0 {
		return errors.New("NORMAL_BUDGET must be > 0")
	}
	if c.DegradedBudget <= 0 || c.DegradedBudget > c.NormalBudget {
		return errors.New("DEGRADED_BUDGET must be > 0 and <= NORMAL_BUDGET")
	}
	if c.MaxViolations <= 0 {
		return errors.New("MAX_VIOLATIONS must be > 0")
	}
	if c.BanDuration <= 0 {
		return errors.New("BAN_DURATION must be > 0")
	}
	if c.StoreTimeout <= 0 || c.HealthTimeout <= 0 || c.ForwardTimeout <= 0 {
		return errors.New("STORE_TIMEOUT, HEALTH_TIMEOUT and FORWARD_TIMEOUT must be > 0")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if b := strings.ToLower(c.StatsBucket); b != "minute" && b != "none" {
		return fmt.Errorf("STATS_BUCKET must be minute or none, got %q", c.StatsBucket)
	}
	return nil
}

func setControlPlaneDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("log_level", "info")
	v.SetDefault("allow_origin", "*")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "flux")
	v.SetDefault("stats_prefix", "flux:stats")
	v.SetDefault("rate_rps", 5)
	v.SetDefault("rate_burst", 10)
	v.SetDefault("store_timeout", "2s")
	v.SetDefault("ban_duration", "24h")
}

// LoadControlPlane lê e valida as configurações do control plane.
// ADMIN_KEY é obrigatório: sem ele qualquer um altera reputações.
func LoadControlPlane(v *viper.Viper) (ControlPlane, error) {
	setControlPlaneDefaults(v)

	cfg := ControlPlane{
		ListenAddr:   v.GetString("listen_addr"),
		LogLevel:     v.GetString("log_level"),
		AdminKey:     v.GetString("admin_key"),
		AllowOrigin:  v.GetString("allow_origin"),
		Redis:        readRedis(v),
		Prefix:       v.GetString("redis_prefix"),
		StatsPrefix:  v.GetString("stats_prefix"),
		RateRPS:      v.GetFloat64("rate_rps"),
		RateBurst:    v.GetInt("rate_burst"),
		StoreTimeout: v.GetDuration("store_timeout"),
		BanDuration:  v.GetDuration("ban_duration"),
	}

	if strings.TrimSpace(cfg.AdminKey) == "" {
		return ControlPlane{}, errors.New("ADMIN_KEY is required")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return ControlPlane{}, errors.New("REDIS_ADDR is required")
	}
	if cfg.RateRPS <= 0 {
		return ControlPlane{}, errors.New("RATE_RPS must be > 0")
	}
	if cfg.RateBurst <= 0 {
		return ControlPlane{}, errors.New("RATE_BURST must be > 0")
	}
	if cfg.StoreTimeout <= 0 || cfg.BanDuration <= 0 {
		return ControlPlane{}, errors.New("STORE_TIMEOUT and BAN_DURATION must be > 0")
	}
	return cfg, nil
}

// splitList aceita tanto lista do arquivo quanto "a,b c" vindo do env.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func readRedis(v *viper.Viper) Redis {
	return Redis{
		Addr:     strings.TrimSpace(v.GetString("redis_addr")),
		Password: v.GetString("redis_password"),
		DB:       v.GetInt("redis_db"),
	}
}
