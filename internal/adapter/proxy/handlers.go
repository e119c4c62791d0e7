package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/infra/tracer"
)

const maxUpstreamBody = 10 << 20

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Uptime:    now.Sub(s.started).Seconds(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":   "Not Found",
		"message": fmt.Sprintf("The endpoint %s does not exist", r.URL.Path),
	})
}

// upstreamBody is what the relay sends to a provider.
type upstreamBody struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "provider"))
	up, ok := s.upstreams[name]
	if !ok {
		err := domain.NewSubSystemError("proxy", "Server.Relay", domain.ErrNotFound, name)
		s.logger.Warn("unknown upstream", "provider", name, "code", domain.ErrorCodeOf(err))
		s.handleNotFound(w, r)
		return
	}

	var req relayRequest
	if !s.decode(w, r, &req) {
		return
	}

	if up.APIKey == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("%s API key not configured", displayName(up.Name)),
		})
		return
	}

	body := upstreamBody{
		Model:       up.Model,
		Messages:    req.Messages,
		Temperature: up.Temperature,
		MaxTokens:   up.MaxTokens,
		TopP:        up.TopP,
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}

	headers := map[string]string{"Authorization": "Bearer " + up.APIKey}
	if up.Referer != "" {
		headers["HTTP-Referer"] = up.Referer
	}

	ctx, span := tracer.StartSpan(r.Context(), "proxy.relay")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("proxy.upstream", up.Name),
		tracer.IntAttr("proxy.messages", len(req.Messages)),
	)

	status, data, err := s.post(ctx, s.client, up.URL, body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Error("upstream request failed", "provider", up.Name, "error", err,
			"request_id", chimw.GetReqID(ctx))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}
	if status < 200 || status >= 300 {
		tracer.RecordError(span, fmt.Errorf("%s returned %d", up.Name, status))
		s.logger.Warn("upstream returned error", "provider", up.Name, "status", status)
		writeJSON(w, status, map[string]any{
			"error":  upstreamMessage(data),
			"status": status,
		})
		return
	}

	tracer.SetOK(span)
	writeRaw(w, http.StatusOK, data)
}

func (s *Server) handleGeneric(w http.ResponseWriter, r *http.Request) {
	if len(s.allowed) == 0 {
		err := domain.NewSubSystemError("proxy", "Server.Generic", domain.ErrForbidden, "generic proxy disabled")
		s.logger.Warn("generic proxy rejected", "code", domain.ErrorCodeOf(err), "error", err)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Generic proxy is disabled"})
		return
	}

	var req genericRequest
	if !s.decode(w, r, &req) {
		return
	}

	target, err := s.checkTarget(req.URL)
	if err != nil {
		s.rejectTarget(w, err)
		return
	}

	ctx, span := tracer.StartSpan(r.Context(), "proxy.generic")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("proxy.host", target.Host))

	status, data, err := s.post(ctx, s.generic, target.String(), req.Data, req.Headers)
	if errors.Is(err, domain.ErrForbidden) {
		// A redirect left the allowlist.
		tracer.RecordError(span, err)
		s.rejectTarget(w, err)
		return
	}
	if err == nil && (status < 200 || status >= 300) {
		err = fmt.Errorf("request failed with status code %d", status)
	}
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Error("generic proxy failed", "host", target.Host, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	tracer.SetOK(span)
	writeRaw(w, http.StatusOK, data)
}

func (s *Server) rejectTarget(w http.ResponseWriter, err error) {
	s.logger.Warn("generic proxy rejected", "code", domain.ErrorCodeOf(err), "error", err)
	status := http.StatusForbidden
	if errors.Is(err, domain.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	msg := err.Error()
	var de *domain.DomainError
	if errors.As(err, &de) {
		msg = de.Detail
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// checkTarget parses raw and verifies its host is allow-listed. Entries
// match either the bare hostname or host:port.
func (s *Server) checkTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, domain.NewSubSystemError("proxy", "Server.checkTarget", domain.ErrInvalidInput,
			fmt.Sprintf("invalid URL: %v", err))
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, domain.NewSubSystemError("proxy", "Server.checkTarget", domain.ErrInvalidInput,
			fmt.Sprintf("scheme %q not allowed, only http/https", u.Scheme))
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, domain.NewSubSystemError("proxy", "Server.checkTarget", domain.ErrInvalidInput, "empty hostname")
	}
	if _, ok := s.allowed[host]; ok {
		return u, nil
	}
	if _, ok := s.allowed[strings.ToLower(u.Host)]; ok {
		return u, nil
	}
	return nil, domain.NewSubSystemError("proxy", "Server.checkTarget", domain.ErrForbidden,
		fmt.Sprintf("host %s is not allowed", u.Host))
}

// decode reads a size-capped JSON body into v and validates it. On failure
// it writes the response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		msg := validationMessage(err)
		verr := domain.NewSubSystemError("proxy", "Server.decode", domain.ErrInvalidInput, msg)
		s.logger.Debug("request body rejected", "code", domain.ErrorCodeOf(verr), "error", msg)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return false
	}
	return true
}

// post sends payload as JSON and returns the status and raw response body.
func (s *Server) post(ctx context.Context, client *http.Client, target string, payload any, headers map[string]string) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// upstreamMessage pulls a human-readable message out of a provider error
// body.
func upstreamMessage(data []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		return "API request failed"
	}
	if body.Message != "" {
		return body.Message
	}
	if len(body.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(body.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	return "API request failed"
}

// displayName capitalizes an upstream name for user-facing errors.
func displayName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
