// Package service runs an authenticated image generation request end to end
// and returns the enclave-signed result.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/kissyface-enclave/internal/collab"
	"github.com/Layr-Labs/kissyface-enclave/internal/loras"
	"github.com/Layr-Labs/kissyface-enclave/internal/metrics"
	"github.com/Layr-Labs/kissyface-enclave/internal/ratelimit"
	"github.com/Layr-Labs/kissyface-enclave/pkg/attest"
	"github.com/Layr-Labs/kissyface-enclave/pkg/auth"
	"github.com/Layr-Labs/kissyface-enclave/pkg/crypto"
	"github.com/Layr-Labs/kissyface-enclave/pkg/intent"
	"github.com/Layr-Labs/kissyface-enclave/pkg/types"
)

var (
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInsufficientCredit = errors.New("not enough credits")
	ErrUnknownLora        = loras.ErrUnknownLora
	// ErrUpstream wraps failures of the generation and credit services.
	ErrUpstream = errors.New("upstream service failed")
)

const (
	minCredit = 1

	defaultWidth  = 1024
	defaultHeight = 768
)

// Deps are the collaborators a Service calls. Blobs, Catalog, Limiter and
// Metrics are optional.
type Deps struct {
	Refiner   collab.PromptRefiner
	Generator collab.ImageGenerator
	Ledger    collab.CreditLedger
	Blobs     collab.BlobStore
	Catalog   *loras.Catalog
	Limiter   *ratelimit.MapLimiter
	Metrics   *metrics.Metrics
	Window    auth.DateWindow
	Clock     attest.Clock
}

type Service struct {
	logger *zap.Logger
	keys   *crypto.KeyPair
	deps   Deps
}

func New(logger *zap.Logger, keys *crypto.KeyPair, deps Deps) (*Service, error) {
	if keys == nil {
		return nil, fmt.Errorf("enclave key pair is required")
	}
	if deps.Refiner == nil || deps.Generator == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("refiner, generator and ledger are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = attest.SystemClock
	}
	return &Service{logger: logger, keys: keys, deps: deps}, nil
}

func (s *Service) Address() crypto.Address {
	return s.keys.Address()
}

// Process authenticates req, generates the image and signs the result under
// the ProcessData scope. Credit is charged only after generation succeeds.
func (s *Service) Process(ctx context.Context, req types.ImageGenRequest) (*types.SignedResponse[types.ImageGenResponse], error) {
	sugar := s.logger.Sugar()

	address, err := auth.VerifyRequest(req.Signature, req.Date)
	if err != nil {
		s.observeVerification(err)
		return nil, err
	}
	s.observeVerification(nil)
	user := address.String()
	sugar.Infow("Verified request signature", "address", user)

	if err := s.deps.Window.Check(req.Date); err != nil {
		return nil, err
	}

	now, err := s.deps.Clock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attest.ErrClock, err)
	}
	if !s.deps.Limiter.Allow(user, now) {
		return nil, fmt.Errorf("%w for %s", ErrRateLimited, user)
	}

	lora, err := s.deps.Catalog.Lookup(req.LoraPath)
	if err != nil {
		return nil, err
	}
	params := resolveParams(req, lora)

	balance, err := s.deps.Ledger.Balance(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if balance < minCredit {
		return nil, fmt.Errorf("%w: %s has %d", ErrInsufficientCredit, user, balance)
	}

	prompt, err := s.deps.Refiner.Refine(ctx, req.Prompt, params.refinement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	prompt = ApplyTriggers(prompt, params.prefix, params.suffix)

	image, err := s.deps.Generator.Generate(ctx, collab.GenerateRequest{
		Prompt:    prompt,
		Width:     params.width,
		Height:    params.height,
		Steps:     params.steps,
		Seed:      req.Seed,
		LoraPath:  params.path,
		LoraScale: params.scale,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	creator, model := loras.CreditAccount(params.path)
	if err := s.deps.Ledger.Charge(ctx, collab.Charge{
		UserAddress:  user,
		ModelCreator: creator,
		ModelName:    model,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := attest.SignResponseNow(s.keys, s.deps.Clock, types.ImageGenResponse{
		Image:  image,
		Prompt: prompt,
		Seed:   req.Seed,
	}, intent.ScopeProcessData)
	if err != nil {
		return nil, err
	}

	s.store(ctx, image)
	return resp, nil
}

// store uploads the generated image. Failures are logged and ignored.
func (s *Service) store(ctx context.Context, image string) {
	if s.deps.Blobs == nil {
		s.logger.Debug("Skipping blob upload, no store configured")
		return
	}
	data, err := base64.StdEncoding.DecodeString(image)
	if err != nil {
		s.logger.Sugar().Warnw("Generated image is not valid base64, skipping upload", "error", err)
		return
	}
	url, err := s.deps.Blobs.Put(ctx, data, "image/jpeg")
	if err != nil {
		s.logger.Sugar().Warnw("Blob upload failed, continuing", "error", err)
		return
	}
	s.logger.Sugar().Infow("Image stored", "url", url)
}

func (s *Service) observeVerification(err error) {
	switch {
	case err == nil:
		s.deps.Metrics.ObserveVerification(metrics.ResultOK)
	case errors.Is(err, auth.ErrSignatureMismatch):
		s.deps.Metrics.ObserveVerification(metrics.ResultMismatch)
	default:
		s.deps.Metrics.ObserveVerification(metrics.ResultMalformed)
	}
}

// ApplyTriggers wraps prompt in the lora trigger words: "prefix, prompt"
// and then "prompt suffix".
func ApplyTriggers(prompt string, prefix, suffix *string) string {
	if prefix != nil {
		prompt = *prefix + ", " + prompt
	}
	if suffix != nil {
		prompt = prompt + " " + *suffix
	}
	return prompt
}

type genParams struct {
	path          string
	scale         float32
	steps         uint32
	width, height uint32
	prefix        *string
	suffix        *string
	refinement    *string
}

// resolveParams merges req with its catalog entry. Catalog scale and steps
// win; size, triggers and refinement come from the catalog only when the
// request leaves them unset.
func resolveParams(req types.ImageGenRequest, lora loras.Lora) genParams {
	p := genParams{
		path:       req.LoraPath,
		scale:      req.LoraScale,
		steps:      req.Steps,
		width:      req.Width,
		height:     req.Height,
		prefix:     req.TriggerPrefix,
		suffix:     req.TriggerSuffix,
		refinement: req.RefinementInstruction,
	}
	if lora.Scale != 0 {
		p.scale = lora.Scale
	}
	if lora.Steps != 0 {
		p.steps = lora.Steps
	}
	if p.width == 0 {
		p.width = lora.Width
	}
	if p.height == 0 {
		p.height = lora.Height
	}
	if p.width == 0 {
		p.width = defaultWidth
	}
	if p.height == 0 {
		p.height = defaultHeight
	}
	if p.prefix == nil && lora.TriggerPrefix != "" {
		p.prefix = &lora.TriggerPrefix
	}
	if p.suffix == nil && lora.TriggerSuffix != "" {
		p.suffix = &lora.TriggerSuffix
	}
	if p.refinement == nil && lora.Refinement != "" {
		p.refinement = &lora.Refinement
	}
	return p
}

// KeyInfoSource issues the enclave's signed key description.
type KeyInfoSource struct {
	cache *attest.KeyInfoCache
	clock attest.Clock
}

func NewKeyInfoSource(keys *crypto.KeyPair, ttl time.Duration, clock attest.Clock) *KeyInfoSource {
	if clock == nil {
		clock = attest.SystemClock
	}
	return &KeyInfoSource{cache: attest.NewKeyInfoCache(keys, ttl), clock: clock}
}

func (k *KeyInfoSource) Get() (*types.SignedResponse[types.KeyInfo], error) {
	now, err := k.clock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", attest.ErrClock, err)
	}
	return k.cache.Get(now)
}
