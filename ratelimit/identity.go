package ratelimit

import (
	"net/netip"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/catalog-service/types"
)

const UnknownIdentity = "unknown"

// Identity picks the bucket key for a request: the client IP, then the first
// X-Forwarded-For hop, then X-Real-IP. Requests with none of them share the
// "unknown" bucket.
func Identity(req types.RequestIdentity) string {
	if req == nil {
		return UnknownIdentity
	}

	if ip := strings.TrimSpace(req.ClientIP()); ip != "" {
		return ip
	}

	if forwarded := req.Header("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(req.Header("X-Real-IP")); realIP != "" {
		return realIP
	}

	return UnknownIdentity
}

// Resolver derives identities for deployments behind reverse proxies. A
// request whose client IP belongs to a trusted proxy is keyed by its
// forwarding headers instead, falling back to the proxy address when it sent
// none. A nil Resolver behaves like Identity.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver accepts single addresses and CIDR ranges.
func NewResolver(trustedProxies []string) (*Resolver, error) {
	r := &Resolver{}

	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)

		if prefix, err := netip.ParsePrefix(entry); err == nil {
			r.trusted = append(r.trusted, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, types.Errorf(types.ErrLimiterConfigInvalid, "trusted proxy %q", entry)
		}
		addr = addr.Unmap()
		r.trusted = append(r.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return r, nil
}

func (r *Resolver) Identity(req types.RequestIdentity) string {
	if r == nil || req == nil || !r.Trusted(req.ClientIP()) {
		return Identity(req)
	}

	if identity := Identity(behindProxy{req}); identity != UnknownIdentity {
		return identity
	}
	return Identity(req)
}

// Trusted reports whether ip belongs to a trusted proxy.
func (r *Resolver) Trusted(ip string) bool {
	if r == nil {
		return false
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range r.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// behindProxy hides the proxy's own address so the headers decide.
type behindProxy struct {
	types.RequestIdentity
}

func (behindProxy) ClientIP() string { return "" }

type fastHTTPIdentity struct {
	ctx *fasthttp.RequestCtx
}

// FromRequestCtx adapts a fasthttp request. Connections without a usable
// remote address report an empty client IP.
func FromRequestCtx(ctx *fasthttp.RequestCtx) types.RequestIdentity {
	return fastHTTPIdentity{ctx: ctx}
}

func (f fastHTTPIdentity) ClientIP() string {
	ip := f.ctx.RemoteIP()
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}

func (f fastHTTPIdentity) Header(name string) string {
	return string(f.ctx.Request.Header.Peek(name))
}
