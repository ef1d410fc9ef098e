package host

import "galleryrip/internal/domain/ports"

// DefaultResolvers is the host set registered at startup. Order matters: the
// first resolver claiming a URL wins, so the catch-all direct resolver goes
// last.
func DefaultResolvers() []ports.Resolver {
	return []ports.Resolver{
		NewThumbRewriteResolver("pixhost", 1, "/thumbs/", "/images/", "pixhost.to"),
		NewThumbRewriteResolver("imgbox", 2, "/thumbs/", "/images/", "imgbox.com"),
		NewThumbRewriteResolver("turboimagehost", 3, "/t1/", "/p1/", "turboimagehost.com"),
		NewDirectResolver("direct", 0),
	}
}
