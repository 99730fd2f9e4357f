package security

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// 画像URL検証のエラー。呼び出し側はerrors.Isで判定する。
var (
	// ErrInvalidImageURL はURLの形式・スキームが不正な場合に返る。
	ErrInvalidImageURL = errors.New("invalid image URL")
	// ErrBlockedImageURL は内部ネットワーク宛てのURLの場合に返る。
	ErrBlockedImageURL = errors.New("blocked image URL")
	// ErrNotAnImage は取得先が画像を返さない場合に返る。
	ErrNotAnImage = errors.New("URL does not point to an image")
)

// ImageURLGuard はプロフィール画像URLの安全性を検証するインターフェース。
type ImageURLGuard interface {
	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	ValidateURL(rawURL string) error

	// CheckImage はSSRF防止付きクライアントでHEADリクエストを送り、
	// 2xxかつContent-Typeがimage/*であることを確認する。
	CheckImage(ctx context.Context, rawURL string) error
}

// allowedSchemes は画像URLで許可されるスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は静的検証でブロックするネットワーク範囲。
// safeurlはDialerレベルでDNS解決後のIPも検証するため、DNS再バインディングはそちらで防ぐ。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"100.64.0.0/10",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []net.IPNet {
	networks := make([]net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, *network)
	}
	return networks
}

// imageURLGuard はImageURLGuardの実装。
type imageURLGuard struct {
	client *http.Client
}

// NewImageURLGuard はImageURLGuardを生成する。timeoutはHEADリクエスト全体の上限。
func NewImageURLGuard(timeout time.Duration) *imageURLGuard {
	return &imageURLGuard{client: NewSafeClient(timeout)}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlのデフォルト設定によりプライベート・ループバック・リンクローカル・
// メタデータIPへの接続がDialerのControlフックで拒否される。
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はURLの安全性を事前に検証する。
func (g *imageURLGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidImageURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}

	if !isAllowedScheme(parsed.Scheme) {
		return fmt.Errorf("%w: disallowed scheme %q", ErrInvalidImageURL, parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("%w: credentials in URL", ErrInvalidImageURL)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidImageURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("%w: %s", ErrBlockedImageURL, ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("%w: %s", ErrBlockedImageURL, host)
	}
	return nil
}

// CheckImage は静的検証の後、HEADリクエストで画像であることを確認する。
func (g *imageURLGuard) CheckImage(ctx context.Context, rawURL string) error {
	if err := g.ValidateURL(rawURL); err != nil {
		return err
	}
	return g.probe(ctx, rawURL)
}

// probe はHEADリクエストを送り、レスポンスが画像であることを確認する。
func (g *imageURLGuard) probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := g.client.Do(req)
	if err != nil {
		// safeurlによる拒否もここに来る
		return fmt.Errorf("%w: %v", ErrBlockedImageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrNotAnImage, resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("%w: content type %q", ErrNotAnImage, resp.Header.Get("Content-Type"))
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// isBlockedHostname はlocalhostと内部向けサフィックスを拒否する。
func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	return strings.HasSuffix(lower, ".internal") || strings.HasSuffix(lower, ".local")
}
