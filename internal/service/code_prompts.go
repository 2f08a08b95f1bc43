package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/models"
)

// CodePrompt is a template declared in application code.
type CodePrompt struct {
	Name         string
	TemplateText string
	// TemplateHash is the checksum the caller computed; it must match when present.
	TemplateHash *string
}

// CodeRegistration reports what RegisterCode did for one prompt.
type CodeRegistration struct {
	Name            string
	Mode            models.PromptMode
	VersionNumber   int
	ChangeDetected  bool
	PreviousVersion *int
}

// RegisterCode registers a batch of tracking-mode prompts. The batch is validated up front;
// each prompt is then resolved in its own transaction and always becomes the active version.
func (s *VersioningService) RegisterCode(ctx context.Context, prompts []CodePrompt) ([]*CodeRegistration, error) {
	if len(prompts) == 0 {
		return nil, models.Validationf("no prompts provided")
	}
	seen := make(map[string]struct{}, len(prompts))
	for i := range prompts {
		p := &prompts[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, models.Validationf("prompts[%d]: name is required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, models.Validationf("prompt %q is listed twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.TemplateHash != nil && !strings.EqualFold(*p.TemplateHash, models.Checksum(p.TemplateText)) {
			return nil, models.Validationf("template_hash for %q does not match its template", p.Name)
		}
	}

	results := make([]*CodeRegistration, 0, len(prompts))
	for _, p := range prompts {
		res, err := s.ResolveOrCreateVersion(ctx, RegisterInput{
			Name:         p.Name,
			TemplateText: p.TemplateText,
			SetActive:    true,
			Mode:         models.PromptModeTracking,
		})
		if err != nil {
			return nil, err
		}
		reg := &CodeRegistration{
			Name:           p.Name,
			Mode:           models.PromptModeTracking,
			VersionNumber:  res.Version.VersionNumber,
			ChangeDetected: res.VersionChanged && !res.PromptCreated,
		}
		if reg.ChangeDetected {
			reg.PreviousVersion = res.PreviousActive
		}
		results = append(results, reg)
	}

	s.logger.Info("Code prompts registered", zap.Int("count", len(results)))
	return results, nil
}
