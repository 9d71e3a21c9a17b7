// Package core provides the module system foundation for llamacord.
//
// A module is a self-registering component (a chat channel, an inference
// provider, the HTTP gateway...) identified by a dotted ID such as
// "channel.discord". The App drives every loaded module through the same
// lifecycle:
//
//	New() → Configure() → Provision() → Validate() → Start() → Stop()
package core

import "strings"

// ModuleID is a dotted module identifier, namespace first.
type ModuleID string

// Namespace returns the part of the ID before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part of the ID after the first dot.
func (id ModuleID) Name() string {
	_, name, found := strings.Cut(string(id), ".")
	if !found {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module
}

// Module is implemented by every registrable component.
type Module interface {
	ModuleInfo() ModuleInfo
}
