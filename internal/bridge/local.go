package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/ziadkadry99/popup-studio/internal/auth"
	"github.com/ziadkadry99/popup-studio/internal/widgetstore"
)

// Local saves straight into an in-process widget store. The credential is
// still checked, so the live editor and the HTTP API share one policy.
type Local struct {
	svc  *widgetstore.Service
	jwtm *auth.JWTManager
}

// NewLocal creates a bridge over svc that validates credentials with jwtm.
func NewLocal(svc *widgetstore.Service, jwtm *auth.JWTManager) *Local {
	return &Local{svc: svc, jwtm: jwtm}
}

// Save persists req on behalf of the credential's user.
func (l *Local) Save(ctx context.Context, req SaveRequest) error {
	if err := req.Bundle.Verify(req.TargetObject); err != nil {
		return err
	}

	claims, err := l.jwtm.ValidateToken(req.Credential)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !claims.Role.CanEdit() {
		return fmt.Errorf("%w: role %s cannot save widgets", ErrUnauthorized, claims.Role)
	}

	_, err = l.svc.Save(ctx, claims.Username, widgetstore.SaveInput{
		Object:     req.TargetObject,
		TemplateID: req.TemplateID,
		Config:     req.Config,
		Bundle:     req.Bundle,
	})
	return err
}

// Load returns the stored widget for target.
func (l *Local) Load(ctx context.Context, target string) (LoadResult, error) {
	w, err := l.svc.Store().Get(ctx, target)
	if errors.Is(err, widgetstore.ErrNotFound) {
		return LoadResult{}, nil
	}
	if err != nil {
		return LoadResult{}, err
	}
	return LoadResult{Exists: true, TemplateID: w.TemplateID, Config: w.Config.Clone()}, nil
}
