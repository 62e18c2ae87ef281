package augmenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"media-meta/internal/ai"
)

// MediaNonceAction is the nonce action for generate requests.
const MediaNonceAction = "media_meta_generator_media_nonce"

// RemoteClient talks to a running mediameta server on behalf of a
// headless view.
type RemoteClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func NewRemoteClient(baseURL, token string, httpc *http.Client) *RemoteClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	return &RemoteClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpc: httpc}
}

// RemoteError is a failure envelope returned by the server.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (c *RemoteClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	return resp, nil
}

// call sends the request and decodes a {success,data} envelope into out.
func (c *RemoteClient) call(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &RemoteError{Status: resp.StatusCode, Message: fmt.Sprintf("unexpected response from server (%d)", resp.StatusCode)}
	}
	if !env.Success {
		var fail struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(env.Data, &fail)
		return &RemoteError{Status: resp.StatusCode, Message: fail.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("could not decode response data: %w", err)
	}
	return nil
}

// Nonce fetches a nonce for action for the client's user.
func (c *RemoteClient) Nonce(ctx context.Context, action string) (string, error) {
	var data struct {
		Nonce string `json:"nonce"`
	}
	path := "/ajax/nonce?action=" + url.QueryEscape(action)
	if err := c.call(ctx, http.MethodGet, path, "", nil, &data); err != nil {
		return "", err
	}
	return data.Nonce, nil
}

// RemoteGenerator posts generate requests to /ajax/generate.
type RemoteGenerator struct {
	client *RemoteClient
	nonce  string
}

func (c *RemoteClient) Generator(nonce string) *RemoteGenerator {
	return &RemoteGenerator{client: c, nonce: nonce}
}

func (g *RemoteGenerator) Generate(ctx context.Context, req ai.GenerationRequest) (*ai.GenerationResult, error) {
	form := url.Values{}
	form.Set("nonce", g.nonce)
	form.Set("attachment_id", strconv.FormatInt(req.AttachmentID, 10))
	form.Set("keywords", req.Keywords)
	form.Set("include_keywords_in_alt", strconv.FormatBool(req.IncludeInAlt))
	form.Set("include_keywords_in_title", strconv.FormatBool(req.IncludeInTitle))
	form.Set("include_keywords_in_description", strconv.FormatBool(req.IncludeInDescription))

	var res ai.GenerationResult
	err := g.client.call(ctx, http.MethodPost, "/ajax/generate", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type attachmentFields struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	AltText     string `json:"alt"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// LoadModel fetches attachment id and returns a model whose Save writes the
// three text fields back with PUT /api/attachments/{id}.
func (c *RemoteClient) LoadModel(ctx context.Context, id int64) (*FieldModel, error) {
	path := "/api/attachments/" + strconv.FormatInt(id, 10)

	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var a attachmentFields
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, fmt.Errorf("could not decode attachment: %w", err)
	}

	fields := map[string]string{
		KeyID:          strconv.FormatInt(a.ID, 10),
		KeyFilename:    a.Filename,
		KeyAlt:         a.AltText,
		KeyTitle:       a.Title,
		KeyDescription: a.Description,
	}
	return NewFieldModel(fields, func(ctx context.Context, f map[string]string) error {
		return c.saveFields(ctx, path, f)
	}), nil
}

func (c *RemoteClient) saveFields(ctx context.Context, path string, f map[string]string) error {
	body, err := json.Marshal(map[string]string{
		KeyAlt:         f[KeyAlt],
		KeyTitle:       f[KeyTitle],
		KeyDescription: f[KeyDescription],
	})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// statusError reads the {"error": ...} body the API endpoints send.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return &RemoteError{Status: resp.StatusCode, Message: fmt.Sprintf("server returned %s", resp.Status)}
	}
	return &RemoteError{Status: resp.StatusCode, Message: body.Error}
}
