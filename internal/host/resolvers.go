package host

import (
	"context"
	"net/url"
	"path"
	"strings"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// DirectResolver serves hosts that link straight at the image bytes. No
// markup to parse: the source URL is the final URL.
type DirectResolver struct {
	name    string
	id      domain.HostID
	domains []string
}

func NewDirectResolver(name string, id domain.HostID, domains ...string) *DirectResolver {
	return &DirectResolver{name: name, id: id, domains: domains}
}

func (r *DirectResolver) HostName() string      { return r.name }
func (r *DirectResolver) HostID() domain.HostID { return r.id }

func (r *DirectResolver) IsSupported(rawURL string) bool {
	if len(r.domains) > 0 {
		return matchesDomain(rawURL, r.domains)
	}
	return hasImageExtension(rawURL)
}

func (r *DirectResolver) Resolve(ctx context.Context, image domain.ImageRecord) (ports.ResolvedImage, error) {
	return ports.ResolvedImage{URL: image.URL, Name: nameFromURL(image.URL)}, nil
}

// ThumbRewriteResolver derives the full-size URL from the thumbnail URL by a
// path substitution, the usual /thumbs/ to /images/ hosting convention.
type ThumbRewriteResolver struct {
	name     string
	id       domain.HostID
	domains  []string
	from, to string
}

func NewThumbRewriteResolver(name string, id domain.HostID, from, to string, domains ...string) *ThumbRewriteResolver {
	return &ThumbRewriteResolver{name: name, id: id, domains: domains, from: from, to: to}
}

func (r *ThumbRewriteResolver) HostName() string      { return r.name }
func (r *ThumbRewriteResolver) HostID() domain.HostID { return r.id }

func (r *ThumbRewriteResolver) IsSupported(rawURL string) bool {
	return matchesDomain(rawURL, r.domains)
}

func (r *ThumbRewriteResolver) Resolve(ctx context.Context, image domain.ImageRecord) (ports.ResolvedImage, error) {
	source := image.ThumbURL
	if source == "" {
		source = image.URL
	}
	full := strings.Replace(source, r.from, r.to, 1)
	return ports.ResolvedImage{URL: full, Name: nameFromURL(full)}, nil
}

func matchesDomain(rawURL string, domains []string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	hostname := parsed.Hostname()
	for _, d := range domains {
		if hostname == d || strings.HasSuffix(hostname, "."+d) {
			return true
		}
	}
	return false
}

func hasImageExtension(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(parsed.Path)) {
	case ".bmp", ".gif", ".jpg", ".jpeg", ".png", ".webp":
		return true
	default:
		return false
	}
}

func nameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return "image"
	}
	return name
}
