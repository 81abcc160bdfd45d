package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
)

const maxProxyBody = 10 * 1024 * 1024

// ProviderProxy forwards chat-completion requests to the provider with the
// server-side key so browsers never hold it.
type ProviderProxy struct {
	cfg    config.ProxyConfig
	client *http.Client
	logger *logger.Logger
}

// NewProviderProxy creates the passthrough handler.
func NewProviderProxy(cfg config.ProxyConfig, log *logger.Logger) *ProviderProxy {
	return &ProviderProxy{
		cfg:    cfg,
		client: &http.Client{Transport: proxyTransport(cfg)},
		logger: log.WithComponent("proxy"),
	}
}

// proxyTransport bounds dialing and the wait for response headers. The body
// has no deadline so long event streams are relayed in full.
func proxyTransport(cfg config.ProxyConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}).DialContext
	t.ResponseHeaderTimeout = cfg.Timeout
	return t
}

// Handle godoc
// @Summary Chat-completion passthrough
// @Description Forwards the JSON body to the provider and returns its reply verbatim.
// @Tags proxy
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 405 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/openrouter [post]
func (p *ProviderProxy) Handle(c echo.Context) error {
	h := c.Response().Header()
	h.Set(echo.HeaderAccessControlAllowOrigin, "*")
	h.Set(echo.HeaderAccessControlAllowMethods, "GET, POST, PUT, DELETE, OPTIONS")
	h.Set(echo.HeaderAccessControlAllowHeaders, "Content-Type, Authorization")

	req := c.Request()
	if req.Method == http.MethodOptions {
		return c.NoContent(http.StatusOK)
	}
	if req.Method != http.MethodPost {
		return c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
	}
	if p.cfg.APIKey == "" {
		p.logger.Errorw("Provider api key is not configured")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "API configuration error"})
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxProxyBody))
	if err != nil {
		return p.internalError(c, err)
	}

	upstream, err := http.NewRequestWithContext(req.Context(), http.MethodPost, p.cfg.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return p.internalError(c, err)
	}
	referer := req.Referer()
	if referer == "" {
		referer = p.cfg.DefaultReferer
	}
	upstream.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	upstream.Header.Set("Content-Type", "application/json")
	upstream.Header.Set("HTTP-Referer", referer)
	upstream.Header.Set("X-Title", p.cfg.Title)

	resp, err := p.client.Do(upstream)
	if err != nil {
		return p.internalError(c, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
		p.logger.Errorw("Provider API error", "status", resp.StatusCode, "body", string(text))
		return c.JSON(resp.StatusCode, ErrorResponse{Error: "OpenRouter API error", Details: string(text)})
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return p.stream(c, resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		return p.internalError(c, err)
	}
	if json.Valid(data) {
		return c.JSONBlob(http.StatusOK, data)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = echo.MIMETextPlainCharsetUTF8
	}
	return c.Blob(resp.StatusCode, contentType, data)
}

// stream relays a server-sent event body, flushing after every read.
func (p *ProviderProxy) stream(c echo.Context, resp *http.Response) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.WriteHeader(http.StatusOK)

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil
			}
			w.Flush()
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			p.logger.Warnw("Provider stream interrupted", "error", err)
			return nil
		}
	}
}

func (p *ProviderProxy) internalError(c echo.Context, err error) error {
	p.logger.Errorw("Proxy request failed", "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Details: err.Error()})
}
