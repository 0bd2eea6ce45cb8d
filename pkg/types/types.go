package types

import "github.com/Layr-Labs/kissyface-enclave/pkg/crypto"

// SignedResponse is the on-wire response envelope returned by the enclave.
// Signature is an Ed25519 signature, hex encoded, over the BLAKE2b-256 digest
// of the enclave intent message wrapping {timestamp_ms, payload}.
type SignedResponse[T any] struct {
	Payload     T                `json:"payload"`
	TimestampMs uint64           `json:"timestamp_ms"`
	Signature   crypto.Signature `json:"signature"`
}

// ProcessDataRequest is the request body for /process_data.
type ProcessDataRequest[T any] struct {
	Payload T `json:"payload"`
}

// ImageGenRequest is the payload of a /process_data request.
type ImageGenRequest struct {
	Prompt                string  `json:"prompt"`
	Height                uint32  `json:"height"`
	Width                 uint32  `json:"width"`
	Seed                  uint32  `json:"seed"`
	Steps                 uint32  `json:"steps"`
	LoraPath              string  `json:"lora_path"`
	LoraScale             float32 `json:"lora_scale"`
	RefinementInstruction *string `json:"refinement_instruction,omitempty"`
	TriggerPrefix         *string `json:"trigger_prefix,omitempty"`
	TriggerSuffix         *string `json:"trigger_suffix,omitempty"`
	// Signature is the Base64 compact wallet signature over the personal
	// message for Date.
	Signature string `json:"signature"`
	Date      string `json:"date"`
}

// ImageGenResponse is the signed payload of a /process_data response. Field
// order is part of the signed encoding.
type ImageGenResponse struct {
	Image  string `json:"image"` // base64 JPEG
	Prompt string `json:"prompt"`
	Seed   uint32 `json:"seed"`
}

// KeyInfo is the enclave's self-signed description of its signing key.
type KeyInfo struct {
	PublicKey   crypto.PublicKey `json:"public_key"`
	Address     crypto.Address   `json:"address"`
	IssuedAtMs  uint64           `json:"issued_at_ms"`
	ExpiresAtMs uint64           `json:"expires_at_ms"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Address string `json:"address"`
}
