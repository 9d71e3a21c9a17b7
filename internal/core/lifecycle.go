package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable is implemented by modules that accept YAML configuration.
// The node contains the raw YAML for this module's config section.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner is implemented by modules that need setup after Configure:
// applying defaults, building clients, registering services.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can verify their configuration.
// Validate must not have side effects.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that run background work.
// Start is called once every module is loaded and wired.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that hold resources.
// Called during shutdown in reverse start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
