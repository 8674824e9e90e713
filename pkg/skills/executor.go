package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/zoe-assistant/zoe/pkg/logger"
)

const (
	defaultCallTimeout  = 30 * time.Second
	defaultAuditSize    = 200
	errorBodyTruncateAt = 500
	maxResponseBytes    = 1 << 20
)

// allowedMethods is the fixed set of HTTP methods a skill may use.
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// CallResult is the structured outcome of a skill API call. Policy denials
// and transport failures are results, not errors: the executor never raises
// for a rejected call.
type CallResult struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// AuditEntry records one attempted skill API call, allowed or not.
type AuditEntry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Skill      string    `json:"skill"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
}

// ExecutorConfig configures the runtime enforcement boundary.
type ExecutorConfig struct {
	// AllowedHosts are internal service hostnames permitted in addition to
	// localhost and loopback addresses (e.g. container service names).
	AllowedHosts []string
	// Timeout bounds each outbound call. Zero uses the default.
	Timeout time.Duration
	// AuditSize bounds the in-memory call log. Zero uses the default.
	AuditSize int
}

// Executor is the single choke point for all skill-initiated network calls.
// A skill's declared allowed_endpoints are enforced here, in code the skill
// author cannot influence, together with a fixed internal host allowlist and
// method set.
type Executor struct {
	allowedHosts map[string]bool
	auditSize    int
	client       *http.Client

	mu    sync.Mutex
	audit []AuditEntry
}

// NewExecutor creates an executor with the given config.
func NewExecutor(cfg ExecutorConfig) *Executor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	auditSize := cfg.AuditSize
	if auditSize <= 0 {
		auditSize = defaultAuditSize
	}

	hosts := make(map[string]bool, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		hosts[strings.ToLower(h)] = true
	}

	return &Executor{
		allowedHosts: hosts,
		auditSize:    auditSize,
		client:       &http.Client{Timeout: timeout},
	}
}

// ExecuteAPICall performs a skill-initiated HTTP call after checking it
// against every policy layer. Rejections happen before any network I/O and
// come back as structured failures.
func (e *Executor) ExecuteAPICall(ctx context.Context, skill *Skill, method, rawURL string, body any, headers map[string]string) CallResult {
	method = strings.ToUpper(strings.TrimSpace(method))

	if skill == nil {
		return e.deny(ctx, "", method, rawURL, "no skill provided")
	}
	if !skill.APIOnly {
		return e.deny(ctx, skill.Name, method, rawURL, "skill is not api_only")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return e.deny(ctx, skill.Name, method, rawURL, "unparseable URL")
	}
	if !e.hostAllowed(parsed.Hostname()) {
		return e.deny(ctx, skill.Name, method, rawURL, "host not in internal allowlist: "+parsed.Hostname())
	}
	if !allowedMethods[method] {
		return e.deny(ctx, skill.Name, method, rawURL, "method not allowed: "+method)
	}
	if !endpointAllowed(method, parsed.Path, skill.AllowedEndpoints) {
		return e.deny(ctx, skill.Name, method, rawURL, "endpoint not in skill allowlist: "+method+" "+parsed.Path)
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return e.deny(ctx, skill.Name, method, rawURL, "unserializable request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return e.deny(ctx, skill.Name, method, rawURL, "failed to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		logger.G(ctx).WithError(err).WithFields(map[string]any{
			"skill": skill.Name,
			"url":   rawURL,
		}).Warn("skill API call failed")
		e.record(AuditEntry{Skill: skill.Name, Method: method, URL: rawURL, Allowed: true, Reason: "transport error: " + err.Error()})
		return CallResult{Success: false, Error: "request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		e.record(AuditEntry{Skill: skill.Name, Method: method, URL: rawURL, Allowed: true, Reason: "read error", StatusCode: resp.StatusCode})
		return CallResult{Success: false, Error: "failed to read response body", StatusCode: resp.StatusCode}
	}

	e.record(AuditEntry{Skill: skill.Name, Method: method, URL: rawURL, Allowed: true, StatusCode: resp.StatusCode})

	if resp.StatusCode >= 400 {
		detail := string(raw)
		if len(detail) > errorBodyTruncateAt {
			cut := errorBodyTruncateAt
			// back off to a rune boundary so the cut never splits a rune
			for cut > 0 && !utf8.RuneStart(detail[cut]) {
				cut--
			}
			detail = detail[:cut]
		}
		return CallResult{Success: false, Error: detail, StatusCode: resp.StatusCode}
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		data = string(raw)
	}
	return CallResult{Success: true, Data: data, StatusCode: resp.StatusCode}
}

// CallLog returns the most recent audit entries, newest last. The log is
// bounded and in-memory only; it does not survive restarts.
func (e *Executor) CallLog(limit int) []AuditEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 || limit > len(e.audit) {
		limit = len(e.audit)
	}
	out := make([]AuditEntry, limit)
	copy(out, e.audit[len(e.audit)-limit:])
	return out
}

func (e *Executor) deny(ctx context.Context, skillName, method, rawURL, reason string) CallResult {
	logger.G(ctx).WithFields(map[string]any{
		"skill":  skillName,
		"method": method,
		"url":    rawURL,
		"reason": reason,
	}).Warn("blocked skill API call")

	e.record(AuditEntry{Skill: skillName, Method: method, URL: rawURL, Allowed: false, Reason: reason})
	return CallResult{Success: false, Error: reason}
}

func (e *Executor) record(entry AuditEntry) {
	entry.ID = uuid.NewString()
	entry.Time = time.Now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.audit = append(e.audit, entry)
	if len(e.audit) > e.auditSize {
		e.audit = e.audit[len(e.audit)-e.auditSize:]
	}
}

func (e *Executor) hostAllowed(hostname string) bool {
	hostname = strings.ToLower(hostname)
	if hostname == "" {
		return false
	}
	if isLocalHost(hostname) {
		return true
	}
	return e.allowedHosts[hostname]
}

// isLocalHost checks if the given hostname/IP is a localhost or loopback address
func isLocalHost(hostname string) bool {
	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" || hostname == "0.0.0.0" {
		return true
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}

	return false
}

// endpointAllowed checks "METHOD /path" entries. An entry whose path ends in
// * is matched as a pattern (trailing-* gives prefix matching); anything else
// must match exactly.
func endpointAllowed(method, path string, allowed []string) bool {
	for _, entry := range allowed {
		parts := strings.Fields(entry)
		if len(parts) != 2 {
			continue
		}
		if !strings.EqualFold(parts[0], method) {
			continue
		}

		pattern := parts[1]
		if strings.Contains(pattern, "*") {
			g, err := glob.Compile(pattern)
			if err != nil {
				continue
			}
			if g.Match(path) {
				return true
			}
			continue
		}
		if pattern == path {
			return true
		}
	}
	return false
}
