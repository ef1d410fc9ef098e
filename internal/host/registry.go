package host

import (
	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// Registry is the fixed resolver set, built explicitly at startup. No global
// registration: whoever wires the engine decides which hosts exist.
type Registry struct {
	resolvers []ports.Resolver
	names     map[domain.HostID]string
}

func NewRegistry(resolvers ...ports.Resolver) *Registry {
	names := make(map[domain.HostID]string, len(resolvers))
	for _, r := range resolvers {
		names[r.HostID()] = r.HostName()
	}
	return &Registry{resolvers: resolvers, names: names}
}

// ResolverFor returns the first resolver that supports the URL.
func (r *Registry) ResolverFor(url string) (ports.Resolver, bool) {
	for _, resolver := range r.resolvers {
		if resolver.IsSupported(url) {
			return resolver, true
		}
	}
	return nil, false
}

func (r *Registry) HostIDs() []domain.HostID {
	ids := make([]domain.HostID, 0, len(r.resolvers))
	for _, resolver := range r.resolvers {
		ids = append(ids, resolver.HostID())
	}
	return ids
}

func (r *Registry) HostName(id domain.HostID) string {
	return r.names[id]
}
