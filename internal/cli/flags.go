package cli

import (
	"time"

	"github.com/urfave/cli/v2"
)

var (
	ListenAddrFlag = &cli.StringFlag{
		Name:    "listen-addr",
		Usage:   "Address the enclave HTTP server listens on",
		Value:   "0.0.0.0:3000",
		EnvVars: []string{"LISTEN_ADDR"},
	}

	APIKeyFlag = &cli.StringFlag{
		Name:    "api-key",
		Usage:   "Together AI API key used for prompt refinement and image generation",
		EnvVars: []string{"API_KEY"},
	}

	TogetherURLFlag = &cli.StringFlag{
		Name:    "together-url",
		Usage:   "Together AI API base URL",
		Value:   "https://api.together.xyz",
		EnvVars: []string{"TOGETHER_URL"},
	}

	FrontendURLFlag = &cli.StringFlag{
		Name:    "frontend-url",
		Usage:   "Frontend base URL serving /api/credit (e.g. https://kissyface.xyz)",
		EnvVars: []string{"FRONTEND_URL"},
	}

	AdminSecretFlag = &cli.StringFlag{
		Name:    "admin-secret",
		Usage:   "Shared secret authorizing credit deductions",
		EnvVars: []string{"ADMIN_SECRET"},
	}

	WalrusEndpointKeyFlag = &cli.StringFlag{
		Name:    "walrus-endpoint-key",
		Usage:   "Walrus publisher endpoint key; image upload is skipped when empty",
		EnvVars: []string{"WALRUS_ENDPOINT_KEY"},
	}

	WalrusPublisherURLFlag = &cli.StringFlag{
		Name:    "walrus-publisher-url",
		Usage:   "Walrus publisher base URL",
		Value:   "https://walrus-mainnet-publisher.nami.cloud",
		EnvVars: []string{"WALRUS_PUBLISHER_URL"},
	}

	WalrusAggregatorURLFlag = &cli.StringFlag{
		Name:    "walrus-aggregator-url",
		Usage:   "Walrus aggregator base URL used to build blob links",
		Value:   "https://aggregator.walrus-mainnet.walrus.space",
		EnvVars: []string{"WALRUS_AGGREGATOR_URL"},
	}

	MnemonicFlag = &cli.StringFlag{
		Name:    "mnemonic",
		Usage:   "BIP-39 mnemonic for a deterministic enclave key; a random key is generated when empty",
		EnvVars: []string{"MNEMONIC"},
	}

	LoraCatalogFileFlag = &cli.StringFlag{
		Name:    "lora-catalog-file",
		Usage:   "YAML file listing the LoRA models requests may use; any path is accepted when empty",
		EnvVars: []string{"LORA_CATALOG_FILE"},
	}

	RateLimitRPSFlag = &cli.Float64Flag{
		Name:    "rate-limit-rps",
		Usage:   "Sustained requests per second allowed per account address (0 disables)",
		Value:   0,
		EnvVars: []string{"RATE_LIMIT_RPS"},
	}

	RateLimitBurstFlag = &cli.IntFlag{
		Name:    "rate-limit-burst",
		Usage:   "Burst size per account address",
		Value:   10,
		EnvVars: []string{"RATE_LIMIT_BURST"},
	}

	KeyInfoTTLFlag = &cli.DurationFlag{
		Name:    "key-info-ttl",
		Usage:   "Validity of the signed key info document",
		Value:   5 * time.Minute,
		EnvVars: []string{"KEY_INFO_TTL"},
	}

	MaxDateSkewFlag = &cli.DurationFlag{
		Name:    "max-date-skew",
		Usage:   "Reject requests whose signed date is further than this from now (0 disables)",
		Value:   0,
		EnvVars: []string{"MAX_DATE_SKEW"},
	}

	DebugFlag = &cli.BoolFlag{
		Name:    "debug",
		Usage:   "Enable development logging",
		EnvVars: []string{"DEBUG"},
	}

	DateFlag = &cli.StringFlag{
		Name:     "date",
		Usage:    "Date string to sign",
		Required: true,
	}
)
