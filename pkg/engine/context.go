package engine

import (
	"github.com/twinsync/twinsync/pkg/config"
)

// TwinContext carries the repository root and its loaded configuration
// into every provider call. Providers must not reach for globals; all
// repository-scoped settings travel through this struct.
type TwinContext struct {
	// RepoRoot is the absolute path of the twin repository.
	RepoRoot string

	// Config is the repository configuration loaded from config.yaml.
	Config *config.Config
}

// NewContext loads the repository configuration and builds a context
// for provider calls. Missing configuration is created from defaults.
func NewContext(repoRoot string) (*TwinContext, error) {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		return nil, NewValidationError("load repository config", err).
			WithOperation("context").WithCode(ErrCodeValidation)
	}
	return &TwinContext{RepoRoot: repoRoot, Config: cfg}, nil
}
