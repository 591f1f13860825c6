package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	logger "github.com/bascanada/forklift-ops/pkg/log"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

type Auth interface {
	Login(req *http.Request) error
}

// BasicAuth authenticates with a username and password.
type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Login(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// HeaderAuth sets fixed headers (like Authorization) on each request.
type HeaderAuth struct {
	Headers ty.MS
}

func (h HeaderAuth) Login(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// StatusError is returned when the remote answers with a status >= 400.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type HttpClient struct {
	client http.Client
	url    string
	auth   Auth
}

// WithAuth returns a copy of the client that authenticates every request.
func (c HttpClient) WithAuth(auth Auth) HttpClient {
	c.auth = auth
	return c
}

func (c HttpClient) do(ctx context.Context, method, path string, queryParams ty.MS, headers ty.MS, body io.Reader, responseData interface{}) error {
	fullPath := c.url + path

	q := url.Values{}
	for k, v := range queryParams {
		q.Add(k, v)
	}
	if encoded := q.Encode(); encoded != "" {
		fullPath += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, fullPath, body)
	if err != nil {
		return err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if c.auth != nil {
		if err = c.auth.Login(req); err != nil {
			logger.Warn("%s", err.Error())
		}
	}

	logger.Trace("[%s-HEADERS] %s", method, maskHeaderMap(req.Header))

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if len(resBody) > 0 {
		s := string(resBody)
		if len(s) > 2000 {
			s = s[:2000] + "...TRUNCATED"
		}
		logger.Trace("[%s-RAW] %s", method, s)
	}

	if res.StatusCode >= 400 {
		logger.Debug("error %d %s", res.StatusCode, string(resBody))
		return &StatusError{Method: method, Path: path, Code: res.StatusCode, Body: string(resBody)}
	}

	if responseData == nil || len(resBody) == 0 {
		return nil
	}

	return json.Unmarshal(resBody, responseData)
}

func encodeBody(body interface{}) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if body == nil {
		return &buf, nil
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	return &buf, nil
}

// PostJson posts body encoded as JSON and decodes the answer into responseData.
func (c HttpClient) PostJson(ctx context.Context, path string, headers ty.MS, body interface{}, responseData interface{}) error {
	buf, err := encodeBody(body)
	if err != nil {
		return err
	}

	h := headers.Clone()
	h["Content-Type"] = "application/json"

	logger.Debug("[POST]%s %s", c.url+path, buf.String())

	return c.do(ctx, http.MethodPost, path, nil, h, buf, responseData)
}

// Get issues a GET, with an optional JSON body as the search API accepts.
func (c HttpClient) Get(ctx context.Context, path string, queryParams ty.MS, body interface{}, responseData interface{}) error {
	buf, err := encodeBody(body)
	if err != nil {
		return err
	}

	logger.Debug("[GET]%s %s", c.url+path, buf.String())

	return c.do(ctx, http.MethodGet, path, queryParams, ty.MS{"Content-Type": "application/json"}, buf, responseData)
}

// Head issues a HEAD and only reports transport or status errors.
func (c HttpClient) Head(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodHead, path, nil, nil, http.NoBody, nil)
}

// Delete issues a DELETE and discards the response body.
func (c HttpClient) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, http.NoBody, nil)
}

func GetClient(url string) HttpClient {
	// Normalize URL: if scheme is missing, default to http. Also remove
	// any trailing slash to avoid double slashes when appending paths.
	if url != "" {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			url = "http://" + url
		}
		url = strings.TrimRight(url, "/")
	}

	return HttpClient{
		client: getSpaceClient(),
		url:    url,
	}
}

func getSpaceClient() http.Client {
	switch v := http.DefaultTransport.(type) {
	case (*http.Transport):
		customTransport := v.Clone()
		customTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		return http.Client{Transport: customTransport}
	default:
		return http.Client{}
	}
}

// maskHeaderMap returns a string representation of headers with sensitive
// values redacted (keeps first 4 chars for debugging).
func maskHeaderMap(h http.Header) string {
	redacted := []string{}
	for k, vals := range h {
		v := ""
		if len(vals) > 0 {
			val := vals[0]
			switch strings.ToLower(k) {
			case "authorization", "cookie", "x-auth-token":
				if len(val) > 4 {
					v = val[:4] + "...REDACTED"
				} else {
					v = "REDACTED"
				}
			default:
				v = val
			}
		}
		redacted = append(redacted, fmt.Sprintf("%s: %s", k, v))
	}
	return strings.Join(redacted, "; ")
}
