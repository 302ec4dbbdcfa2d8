package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// privateRanges lists all private/reserved CIDR blocks.
var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var parsedRanges []*net.IPNet

func init() {
	for _, cidr := range privateRanges {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %q: %v", cidr, err))
		}
		parsedRanges = append(parsedRanges, ipnet)
	}
}

// ValidateURL checks that an http(s) URL does not resolve to a private or
// reserved IP.
func ValidateURL(rawURL string) error {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return domain.NewDomainError("ValidateURL", domain.ErrURLBlocked,
				fmt.Sprintf("IP %s is private/reserved", ip))
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return domain.NewDomainError("ValidateURL", domain.ErrURLBlocked,
			fmt.Sprintf("DNS lookup failed: %v", err))
	}
	for _, ip := range ips {
		if IsPrivateIP(ip) {
			return domain.NewDomainError("ValidateURL", domain.ErrURLBlocked,
				fmt.Sprintf("host %s resolves to private IP %s", host, ip))
		}
	}
	return nil
}

// ValidateRepoURL normalizes a repository URL for cloning. When allowedHosts
// is non-empty the host must be one of them; otherwise the host is checked
// with ValidateURL. Credentials, queries and fragments are rejected.
func ValidateRepoURL(rawURL string, allowedHosts []string) (string, error) {
	u, err := parseHTTPURL(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.User != nil {
		return "", domain.NewDomainError("ValidateRepoURL", domain.ErrURLBlocked, "credentials in URL not allowed")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", domain.NewDomainError("ValidateRepoURL", domain.ErrURLBlocked, "query or fragment not allowed")
	}
	path := strings.Trim(u.Path, "/")
	if strings.Count(path, "/") < 1 || strings.Contains(path, "..") {
		return "", domain.NewDomainError("ValidateRepoURL", domain.ErrURLBlocked,
			fmt.Sprintf("path %q is not owner/repo", u.Path))
	}

	host := strings.ToLower(u.Hostname())
	if len(allowedHosts) > 0 {
		if !slices.Contains(allowedHosts, host) {
			return "", domain.NewDomainError("ValidateRepoURL", domain.ErrURLBlocked,
				fmt.Sprintf("host %q not in allowlist", host))
		}
	} else if err := ValidateURL(u.String()); err != nil {
		return "", err
	}

	return u.Scheme + "://" + host + "/" + path, nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.NewDomainError("ValidateURL", domain.ErrURLBlocked, fmt.Sprintf("invalid URL: %v", err))
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return nil, domain.NewDomainError("ValidateURL", domain.ErrURLBlocked, "missing URL scheme, only http/https allowed")
	default:
		return nil, domain.NewDomainError("ValidateURL", domain.ErrURLBlocked,
			fmt.Sprintf("scheme %q not allowed, only http/https", u.Scheme))
	}
	if u.Hostname() == "" {
		return nil, domain.NewDomainError("ValidateURL", domain.ErrURLBlocked, "empty hostname")
	}
	return u, nil
}

// IsPrivateIP checks if an IP falls within any private/reserved range.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, ipnet := range parsedRanges {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// NewSSRFSafeTransport creates an HTTP transport that validates IPs at dial
// time and connects to the validated IP, so DNS cannot change in between.
func NewSSRFSafeTransport() *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("invalid address: %w", err)
			}

			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, domain.NewDomainError("SSRFSafeTransport.Dial", err,
					fmt.Sprintf("DNS lookup failed for %s", host))
			}
			if len(ips) == 0 {
				return nil, domain.NewDomainError("SSRFSafeTransport.Dial", fmt.Errorf("no IPs resolved"), host)
			}

			for _, ip := range ips {
				if IsPrivateIP(ip.IP) {
					return nil, domain.NewDomainError("SSRFSafeTransport.Dial", domain.ErrURLBlocked,
						fmt.Sprintf("%s resolves to private IP %s", host, ip.IP))
				}
			}

			dialer := &net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
		},
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
