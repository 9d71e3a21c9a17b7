package config

import (
	"cmp"
	"slices"

	"github.com/flemzord/llamacord/internal/core"
)

// namespaceOrder ranks module namespaces for loading. Channels come last so
// that their inbound traffic only starts once everything they feed is up.
var namespaceOrder = map[string]int{
	"history":  0,
	"provider": 1,
	"gateway":  2,
	"channel":  3,
}

// Resolve returns the configured module IDs in load order: by namespace
// rank, then by ID.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func rank(id string) int {
	if r, ok := namespaceOrder[core.ModuleID(id).Namespace()]; ok {
		return r
	}
	return len(namespaceOrder)
}
