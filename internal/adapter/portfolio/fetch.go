package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"portfolio-assistant/internal/domain"
)

// maxDocumentSize bounds how much of a candidate is read.
const maxDocumentSize = 5 << 20

// basePlaceholder marks a location resolved against ContextConfig.BaseURL.
const basePlaceholder = "{base}"

// source is one resolved candidate location.
type source struct {
	raw    string // as configured
	target string // URL or file path actually read
	remote bool
}

// resolveSources turns configured locations into fetchable targets.
//
//   - "{base}rest" becomes base + rest, or "/rest" without a base.
//   - http(s) URLs are used as-is; "file://" is stripped to a path.
//   - With an http(s) base, other entries resolve as URL references against it.
//   - With a directory base, other entries are joined under it; a leading "/"
//     is treated as the base root.
//   - Without a base, entries are local file paths.
func resolveSources(base string, locations []string) []source {
	baseURL, baseIsURL := parseHTTPURL(base)

	out := make([]source, 0, len(locations))
	for _, loc := range locations {
		ref := loc
		rebased := false
		if rest, ok := strings.CutPrefix(loc, basePlaceholder); ok {
			rest = strings.TrimPrefix(rest, "/")
			if base == "" {
				ref = "/" + rest
			} else {
				ref = strings.TrimSuffix(base, "/") + "/" + rest
				rebased = true
			}
		}

		switch {
		case isHTTP(ref):
			out = append(out, source{raw: loc, target: ref, remote: true})
		case strings.HasPrefix(ref, "file://"):
			out = append(out, source{raw: loc, target: filepath.Clean(strings.TrimPrefix(ref, "file://"))})
		case baseIsURL:
			rel, err := url.Parse(ref)
			if err != nil {
				continue
			}
			out = append(out, source{raw: loc, target: baseURL.ResolveReference(rel).String(), remote: true})
		case base != "" && !rebased:
			out = append(out, source{raw: loc, target: filepath.Join(base, ref)})
		default:
			out = append(out, source{raw: loc, target: filepath.Clean(ref)})
		}
	}
	return out
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func parseHTTPURL(s string) (*url.URL, bool) {
	if !isHTTP(s) {
		return nil, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

// fetch reads, decodes and validates one candidate.
func (l *Loader) fetch(ctx context.Context, src source) (*domain.PortfolioContext, error) {
	var (
		data []byte
		err  error
	)
	if src.remote {
		data, err = l.fetchHTTP(ctx, src.target)
	} else {
		data, err = readFileLimited(src.target)
	}
	if err != nil {
		return nil, err
	}
	return l.decode(data)
}

func (l *Loader) fetchHTTP(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, domain.NewSubSystemError("portfolio", "Loader.fetch", domain.ErrNotFound,
			fmt.Sprintf("%s returned status %d", target, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, domain.NewSubSystemError("portfolio", "Loader.fetch", domain.ErrInvalidInput, "document too large")
	}
	return data, nil
}

func readFileLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewSubSystemError("portfolio", "Loader.fetch", domain.ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > maxDocumentSize {
		return nil, domain.NewSubSystemError("portfolio", "Loader.fetch", domain.ErrInvalidInput, "document too large")
	}
	return data, nil
}

// decode parses the document and checks the fields the assistant relies on.
func (l *Loader) decode(data []byte) (*domain.PortfolioContext, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var pc domain.PortfolioContext
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, domain.NewSubSystemError("portfolio", "Loader.decode", domain.ErrInvalidInput, err.Error())
	}
	if err := l.validate.Struct(&pc); err != nil {
		return nil, domain.NewSubSystemError("portfolio", "Loader.decode", domain.ErrInvalidInput, err.Error())
	}
	return &pc, nil
}
