package cli

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

type Config struct {
	ListenAddr string

	APIKey      string
	TogetherURL string

	FrontendURL string
	AdminSecret string

	WalrusEndpointKey   string
	WalrusPublisherURL  string
	WalrusAggregatorURL string

	Mnemonic        string
	LoraCatalogFile string

	RateLimitRPS   float64
	RateLimitBurst int

	KeyInfoTTL  time.Duration
	MaxDateSkew time.Duration

	Debug bool
}

func NewConfigFromCLI(c *cli.Context) *Config {
	return &Config{
		ListenAddr:          c.String(ListenAddrFlag.Name),
		APIKey:              c.String(APIKeyFlag.Name),
		TogetherURL:         strings.TrimRight(c.String(TogetherURLFlag.Name), "/"),
		FrontendURL:         strings.TrimRight(c.String(FrontendURLFlag.Name), "/"),
		AdminSecret:         c.String(AdminSecretFlag.Name),
		WalrusEndpointKey:   strings.TrimSpace(c.String(WalrusEndpointKeyFlag.Name)),
		WalrusPublisherURL:  strings.TrimRight(c.String(WalrusPublisherURLFlag.Name), "/"),
		WalrusAggregatorURL: strings.TrimRight(c.String(WalrusAggregatorURLFlag.Name), "/"),
		Mnemonic:            strings.TrimSpace(c.String(MnemonicFlag.Name)),
		LoraCatalogFile:     c.String(LoraCatalogFileFlag.Name),
		RateLimitRPS:        c.Float64(RateLimitRPSFlag.Name),
		RateLimitBurst:      c.Int(RateLimitBurstFlag.Name),
		KeyInfoTTL:          c.Duration(KeyInfoTTLFlag.Name),
		MaxDateSkew:         c.Duration(MaxDateSkewFlag.Name),
		Debug:               c.Bool(DebugFlag.Name),
	}
}

// Validate checks the server configuration. Flags are not marked required so
// that subcommands can run without them.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api-key is required")
	}
	if c.AdminSecret == "" {
		return fmt.Errorf("admin-secret is required")
	}
	for name, raw := range map[string]string{
		"together-url":          c.TogetherURL,
		"frontend-url":          c.FrontendURL,
		"walrus-publisher-url":  c.WalrusPublisherURL,
		"walrus-aggregator-url": c.WalrusAggregatorURL,
	} {
		if err := validateHTTPURL(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen-addr is required")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate-limit-rps must not be negative, got %v", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate-limit-burst must be positive, got %d", c.RateLimitBurst)
	}
	if c.KeyInfoTTL <= 0 {
		return fmt.Errorf("key-info-ttl must be positive, got %s", c.KeyInfoTTL)
	}
	if c.MaxDateSkew < 0 {
		return fmt.Errorf("max-date-skew must not be negative, got %s", c.MaxDateSkew)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be http(s), got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
