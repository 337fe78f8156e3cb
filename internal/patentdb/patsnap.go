// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patentdb

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pdiddy/priorart-engine/internal/httputil"
	"github.com/pdiddy/priorart-engine/pkg/types"
)

const (
	defaultPassportURL = "https://passport.zhihuiya.com"
	defaultSearchURL   = "https://search-service.zhihuiya.com/core-search-api/search"
)

// PatSnapName is the PatSnap backend identifier.
const PatSnapName = "patsnap"

var semanticIDPattern = regexp.MustCompile(`semantic_id=([a-f0-9\-]+)`)

// errAuthExpired marks a response rejected for an expired bearer token.
var errAuthExpired = errors.New("patsnap token expired")

// PatSnap is the PatSnap (Zhihuiya) search client. Its bearer token is
// shared by all goroutines and refreshed under a single lock.
type PatSnap struct {
	client      *http.Client
	username    string
	password    string
	clientID    string
	passportURL string
	searchURL   string
	userAgent   string
	maxRetries  int
	logger      *slog.Logger

	mu     sync.RWMutex
	token  string
	logins int
}

// NewPatSnap builds a client from cfg. No network call happens until the
// first request.
func NewPatSnap(cfg types.PatentDBConfig) *PatSnap {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	passport := strings.TrimRight(cfg.PassportURL, "/")
	if passport == "" {
		passport = defaultPassportURL
	}
	search := strings.TrimRight(cfg.SearchURL, "/")
	if search == "" {
		search = defaultSearchURL
	}
	return &PatSnap{
		client:      &http.Client{Timeout: timeout},
		username:    cfg.Username,
		password:    cfg.Password,
		clientID:    cfg.ClientID,
		passportURL: passport,
		searchURL:   search,
		userAgent:   cfg.UserAgent,
		maxRetries:  cfg.MaxRetries,
		logger:      slog.Default().With("component", "patsnap"),
	}
}

// Name returns the backend identifier.
func (p *PatSnap) Name() string { return PatSnapName }

// Search runs a boolean command-line query.
func (p *PatSnap) Search(ctx context.Context, req Request) (Result, error) {
	payload := map[string]any{
		"special_query": false,
		"view_type":     "standard",
		"with_count":    true,
		"_type":         "query",
		"q":             req.Query,
		"sort":          "sdesc",
		"page":          1,
		"limit":         limitOr(req.Limit, 50),
		"search_mode":   "publication",
	}
	body, err := p.do(ctx, http.MethodPost, "/srp/patents", payload)
	if err != nil {
		return Result{}, err
	}
	return parsePatSnapResult(body), nil
}

// SearchSemantic runs the two-step semantic search: the text is registered
// to obtain a semantic_id, which is then searched like a query.
func (p *PatSnap) SearchSemantic(ctx context.Context, req Request) (Result, error) {
	body, err := p.do(ctx, http.MethodPost, "/input/search/semantic", map[string]any{
		"from_pbd":       "",
		"to_pbd":         req.ToDate,
		"ipc_logic_type": "AND",
		"query":          req.Query,
	})
	if err != nil {
		return Result{}, err
	}

	redirect := gjson.GetBytes(body, "data.url").String()
	m := semanticIDPattern.FindStringSubmatch(redirect)
	if m == nil {
		return Result{}, fmt.Errorf("no semantic_id in %q", redirect)
	}

	body, err = p.do(ctx, http.MethodPost, "/srp/patents", map[string]any{
		"special_query": false,
		"view_type":     "standard",
		"with_count":    true,
		"_type":         "semantic",
		"q":             "[SEMANTIC]" + m[1],
		"semantic_id":   m[1],
		"search_mode":   "unset",
		"sort":          "sdesc",
		"page":          1,
		"limit":         limitOr(req.Limit, 50),
	})
	if err != nil {
		return Result{}, err
	}
	return parsePatSnapResult(body), nil
}

// Family returns the extended family of the publication number, excluding itself.
func (p *PatSnap) Family(ctx context.Context, number string, limit int) ([]Hit, error) {
	if number == "" {
		return nil, nil
	}
	res, err := p.Search(ctx, Request{Query: fmt.Sprintf("EFAM:(%s)", number), Limit: limit})
	if err != nil {
		return nil, err
	}
	var out []Hit
	for _, h := range res.Hits {
		if h.PublicationNumber != number {
			out = append(out, h)
		}
	}
	return out, nil
}

// Citations returns documents citing or cited by the publication number.
func (p *PatSnap) Citations(ctx context.Context, number string, limit int) ([]Hit, error) {
	if number == "" {
		return nil, nil
	}
	res, err := p.Search(ctx, Request{Query: fmt.Sprintf("BF_CITES:(%s)", number), Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// FullText returns the description text of the document with PATENT_ID uid.
func (p *PatSnap) FullText(ctx context.Context, uid string) (string, error) {
	body, err := p.do(ctx, http.MethodPost, "/patent/id/"+uid+"/desc", map[string]any{
		"_type":       "query",
		"source_type": "search_result",
		"q":           "PATENT_ID:" + uid,
	})
	if err != nil {
		return "", err
	}
	return cleanHTML(localized(gjson.GetBytes(body, "data.DESC"))), nil
}

// Logins returns how many logins the client has performed.
func (p *PatSnap) Logins() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logins
}

// do sends one authenticated JSON request. An expired token is refreshed
// once and the request retried with the new token.
func (p *PatSnap) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	token, err := p.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		body, err := p.send(ctx, method, p.searchURL+path, payload, token)
		if errors.Is(err, errAuthExpired) && attempt == 0 {
			p.logger.WarnContext(ctx, "token expired, refreshing", "path", path)
			if token, err = p.refresh(ctx, token); err != nil {
				return nil, err
			}
			continue
		}
		return body, err
	}
}

func (p *PatSnap) send(ctx context.Context, method, url string, payload any, token string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-version", "2.0")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httputil.DoWithRetry(ctx, p.client, req, p.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("PatSnap API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading PatSnap response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || tokenExpired(body) {
		return nil, errAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PatSnap API returned HTTP %d", resp.StatusCode)
	}
	if status := gjson.GetBytes(body, "status"); status.Exists() && status.Type == gjson.False {
		return nil, fmt.Errorf("PatSnap API error: %s", gjson.GetBytes(body, "message").String())
	}
	return body, nil
}

// tokenExpired reports whether the response envelope itself rejects the
// token. Document text in the payload is never inspected.
func tokenExpired(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	r := gjson.GetManyBytes(body, "status", "message")
	return r[0].Type == gjson.False && strings.Contains(strings.ToLower(r[1].String()), "token expired")
}

// currentToken returns the shared token, logging in first if there is none.
func (p *PatSnap) currentToken(ctx context.Context) (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" {
		return p.token, nil
	}
	return p.loginLocked(ctx)
}

// refresh replaces the stale token. If another goroutine already replaced
// it, the newer token is returned without logging in again.
func (p *PatSnap) refresh(ctx context.Context, stale string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.token != stale {
		return p.token, nil
	}
	p.token = ""
	return p.loginLocked(ctx)
}

// loginLocked performs the public-key login flow. p.mu must be held.
func (p *PatSnap) loginLocked(ctx context.Context) (string, error) {
	if p.username == "" || p.password == "" {
		return "", fmt.Errorf("PatSnap credentials are not configured")
	}
	p.logger.InfoContext(ctx, "logging in")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.passportURL+"/public/request_public_key", nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := httputil.DoWithRetry(ctx, p.client, req, p.maxRetries)
	if err != nil {
		return "", fmt.Errorf("requesting public key: %w", err)
	}
	keyText, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("reading public key: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public key request returned HTTP %d", resp.StatusCode)
	}

	encrypted, err := encryptPassword(p.password, string(keyText))
	if err != nil {
		return "", err
	}

	data, _ := json.Marshal(map[string]string{
		"username":      p.username,
		"password":      encrypted,
		"remember_me":   "on",
		"client_id":     p.clientID,
		"from":          "account",
		"response_type": "TOKEN",
	})
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, p.passportURL+"/doLogin", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err = httputil.DoWithRetry(ctx, p.client, req, p.maxRetries)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", fmt.Errorf("reading login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned HTTP %d", resp.StatusCode)
	}
	token := gjson.GetBytes(body, "token").String()
	if token == "" {
		return "", fmt.Errorf("login response carried no token")
	}

	p.token = token
	p.logins++
	p.logger.InfoContext(ctx, "login successful")

	if _, err := p.send(ctx, http.MethodPut, p.searchURL+"/srp/setting", map[string]string{
		"view":        "standard",
		"fields":      "PN,TITLE,ABST,ANC,PBD,ICLMS,ADC",
		"search_mode": "publication",
	}, token); err != nil {
		p.logger.WarnContext(ctx, "configuring search settings failed", "err", err)
	}
	return token, nil
}

// encryptPassword RSA-encrypts password with the service's public key
// (PKCS#1 v1.5) and returns it base64-encoded.
func encryptPassword(password, publicKey string) (string, error) {
	text := strings.TrimSpace(publicKey)
	if !strings.Contains(text, "BEGIN") {
		text = "-----BEGIN PUBLIC KEY-----\n" + text + "\n-----END PUBLIC KEY-----"
	}
	block, _ := pem.Decode([]byte(text))
	if block == nil {
		return "", fmt.Errorf("public key is not PEM encoded")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parsing public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("public key is %T, want RSA", pub)
	}
	ct, err := rsa.EncryptPKCS1v15(rand.Reader, rsaPub, []byte(password))
	if err != nil {
		return "", fmt.Errorf("encrypting password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
