// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentRenderer はお知らせ本文のMarkdownをHTMLに変換し、
// bluemondayの許可リストポリシーでサニタイズしてから返す。
// プロフィール画像URLの検証はImageURLGuardが担当する。
package security

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ContentRenderer はMarkdown本文を安全なHTMLに変換するインターフェース。
type ContentRenderer interface {
	// Render はMarkdownをHTMLに変換してサニタイズする。
	// 生のHTMLはMarkdown変換時点で出力されず、変換後のHTMLもサニタイズされる。
	// 空文字列の入力には空文字列を返す。
	Render(markdown string) (string, error)

	// Sanitize はHTMLを許可リストでサニタイズする。
	Sanitize(rawHTML string) string
}

// contentRenderer はContentRendererの実装。
// goldmarkとbluemondayのインスタンスはどちらも並行利用可能。
type contentRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewContentRenderer はContentRendererの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, hr, h1-h4, a, ul, ol, li, blockquote, pre, code, strong, em, del, img
//   - script, iframe, style および全てのon*イベント属性は除去
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentRenderer() *contentRenderer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr",
		"h1", "h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})
	p.AllowURLSchemeWithCustomPolicy("mailto", func(u *url.URL) bool {
		return u.Opaque != ""
	})

	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	)

	return &contentRenderer{
		md:     md,
		policy: p,
	}
}

// Render はMarkdownをHTMLに変換してサニタイズする。
func (r *contentRenderer) Render(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Sanitize はHTMLを許可リストでサニタイズする。
func (r *contentRenderer) Sanitize(rawHTML string) string {
	return r.policy.Sanitize(rawHTML)
}
