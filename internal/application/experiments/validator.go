package experiments

import (
	"fmt"
	"strings"

	"github.com/aescanero/promptlab/pkg/domain"
)

// Validator validates completion and batch requests
type Validator struct {
	providers map[string]bool
}

// NewValidator creates a validator accepting the given providers
func NewValidator(providers []string) *Validator {
	set := make(map[string]bool, len(providers))
	for _, p := range providers {
		set[p] = true
	}
	return &Validator{providers: set}
}

// ValidateRequest checks a resolved completion request
func (v *Validator) ValidateRequest(req *domain.CompletionRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}

	if strings.TrimSpace(req.Prompt) == "" && len(req.Messages) == 0 {
		return fmt.Errorf("prompt is required")
	}
	for _, m := range req.Messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return fmt.Errorf("invalid message role: %s", m.Role)
		}
	}

	if !v.providers[req.Provider] {
		return fmt.Errorf("unknown provider: %s", req.Provider)
	}
	if req.Model == "" {
		return fmt.Errorf("model is required")
	}

	if req.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be at least 1")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	return nil
}

// ValidateBatch checks a resolved batch request
func (v *Validator) ValidateBatch(req *domain.BatchRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}

	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if len(req.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}

	// Duplicate targets would collide in the batch results
	seen := make(map[domain.Target]bool)
	for _, t := range req.Targets {
		if !v.providers[t.Provider] {
			return fmt.Errorf("unknown provider: %s", t.Provider)
		}
		if seen[t] {
			return fmt.Errorf("duplicate target: %s", t)
		}
		seen[t] = true
	}

	if req.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be at least 1")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	return nil
}
