package main

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	enclavecli "github.com/Layr-Labs/kissyface-enclave/internal/cli"
	"github.com/Layr-Labs/kissyface-enclave/internal/collab"
	"github.com/Layr-Labs/kissyface-enclave/internal/loras"
	"github.com/Layr-Labs/kissyface-enclave/internal/metrics"
	"github.com/Layr-Labs/kissyface-enclave/internal/ratelimit"
	"github.com/Layr-Labs/kissyface-enclave/internal/service"
	"github.com/Layr-Labs/kissyface-enclave/pkg/attest"
	"github.com/Layr-Labs/kissyface-enclave/pkg/auth"
	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
)

func main() {
	app := &cli.App{
		Name:  "kissyface-enclave",
		Usage: "Serve wallet-authenticated LoRA image generation with enclave-signed responses",
		Flags: []cli.Flag{
			enclavecli.ListenAddrFlag,
			enclavecli.APIKeyFlag,
			enclavecli.TogetherURLFlag,
			enclavecli.FrontendURLFlag,
			enclavecli.AdminSecretFlag,
			enclavecli.WalrusEndpointKeyFlag,
			enclavecli.WalrusPublisherURLFlag,
			enclavecli.WalrusAggregatorURLFlag,
			enclavecli.MnemonicFlag,
			enclavecli.LoraCatalogFileFlag,
			enclavecli.RateLimitRPSFlag,
			enclavecli.RateLimitBurstFlag,
			enclavecli.KeyInfoTTLFlag,
			enclavecli.MaxDateSkewFlag,
			enclavecli.DebugFlag,
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:  "sign-request",
				Usage: "Sign the personal message for --date with the --mnemonic wallet and print the compact signature",
				Flags: []cli.Flag{
					enclavecli.DateFlag,
				},
				Action: runSignRequest,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	cfg := enclavecli.NewConfigFromCLI(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := enclavecli.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	keys, err := loadKeys(cfg.Mnemonic)
	if err != nil {
		return err
	}

	var catalog *loras.Catalog
	if cfg.LoraCatalogFile != "" {
		catalog, err = loras.LoadFile(cfg.LoraCatalogFile)
		if err != nil {
			return err
		}
		logger.Sugar().Infow("Loaded lora catalog", "file", cfg.LoraCatalogFile, "count", catalog.Len())
	}

	m := metrics.New(prometheus.NewRegistry())
	together := collab.NewTogetherClient(logger, cfg.TogetherURL, cfg.APIKey)
	deps := service.Deps{
		Refiner:   together,
		Generator: together,
		Ledger:    collab.NewCreditClient(logger, cfg.FrontendURL, cfg.AdminSecret),
		Catalog:   catalog,
		Limiter:   ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 0),
		Metrics:   m,
		Window:    auth.DateWindow{MaxSkew: cfg.MaxDateSkew},
		Clock:     attest.SystemClock,
	}
	if cfg.WalrusEndpointKey != "" {
		deps.Blobs = collab.NewWalrusClient(logger, cfg.WalrusPublisherURL, cfg.WalrusAggregatorURL, cfg.WalrusEndpointKey)
	} else {
		logger.Info("Walrus endpoint key not set, generated images will not be stored")
	}

	svc, err := service.New(logger, keys, deps)
	if err != nil {
		return err
	}

	h := &handler{
		logger:  logger,
		svc:     svc,
		keyInfo: service.NewKeyInfoSource(keys, cfg.KeyInfoTTL, attest.SystemClock),
		address: keys.Address(),
		metrics: m,
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar().Infow("kissyface-enclave listening",
		"addr", cfg.ListenAddr,
		"address", keys.Address().String(),
		"public_key", keys.PublicKey().String(),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// loadKeys derives the enclave key from mnemonic, or generates an ephemeral
// one when it is empty.
func loadKeys(mnemonic string) (*crypto.KeyPair, error) {
	if mnemonic != "" {
		keys, err := crypto.KeyPairFromMnemonic(mnemonic)
		if err != nil {
			return nil, fmt.Errorf("key derivation error: %w", err)
		}
		return keys, nil
	}
	keys, err := crypto.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate enclave key: %w", err)
	}
	return keys, nil
}

func runSignRequest(c *cli.Context) error {
	mnemonic := c.String(enclavecli.MnemonicFlag.Name)
	if mnemonic == "" {
		return fmt.Errorf("--mnemonic is required to sign a request")
	}
	keys, err := crypto.KeyPairFromMnemonic(mnemonic)
	if err != nil {
		return err
	}
	sig, err := auth.SignRequest(keys, c.String(enclavecli.DateFlag.Name))
	if err != nil {
		return err
	}
	fmt.Printf("address:   %s\nsignature: %s\n", keys.Address(), sig)
	return nil
}
