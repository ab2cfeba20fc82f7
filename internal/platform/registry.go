// Package platform turns the coordinator's snapshot into entities. Each
// platform is registered with a per-instance Registry and set up in order.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"monoamp/internal/entity"

	"go.uber.org/zap"
)

// Setup creates the entities of one platform
type Setup func(ctx context.Context, pc *Context) ([]entity.Entity, error)

// Info contains metadata about a registered platform
type Info struct {
	// Name is the host platform name (media_player, number, switch)
	Name string

	Description string

	Setup Setup

	// Order specifies the setup order. Lower values go first. Default is 50.
	Order int
}

// Registry holds the platforms of one integration instance
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	platforms map[string]Info
	order     []string
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:    logger.Named("platform"),
		platforms: make(map[string]Info),
		order:     make([]string, 0),
	}
}

// Register adds a platform. Each name may be registered once.
func (r *Registry) Register(info Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("platform name cannot be empty")
	}

	if info.Setup == nil {
		return fmt.Errorf("platform %s: setup cannot be nil", info.Name)
	}

	if info.Order == 0 {
		info.Order = 50
	}

	if _, exists := r.platforms[info.Name]; exists {
		return fmt.Errorf("platform %s already registered", info.Name)
	}

	r.platforms[info.Name] = info
	r.order = append(r.order, info.Name)

	r.logger.Debug("Platform registered",
		zap.String("platform", info.Name),
		zap.Int("order", info.Order),
		zap.String("description", info.Description))

	return nil
}

// List returns all registered platforms sorted by setup order
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Info, 0, len(r.platforms))
	for _, name := range r.order {
		result = append(result, r.platforms[name])
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// SetupAll runs every enabled platform in order and collects their entities.
// The first failing platform aborts setup.
func (r *Registry) SetupAll(ctx context.Context, pc *Context) ([]entity.Entity, error) {
	var entities []entity.Entity

	for _, info := range r.List() {
		if !pc.Config.PlatformEnabled(info.Name) {
			r.logger.Debug("Platform disabled", zap.String("platform", info.Name))
			continue
		}

		created, err := info.Setup(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("failed to set up platform %s: %w", info.Name, err)
		}

		r.logger.Info("Platform set up",
			zap.String("platform", info.Name),
			zap.Int("entities", len(created)))
		entities = append(entities, created...)
	}

	return entities, nil
}
