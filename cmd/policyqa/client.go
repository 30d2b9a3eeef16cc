package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/policyqa/internal/models"
)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

// apiError extracts the {"error": ...} message from a failed response.
func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func doJSON(ctx context.Context, method, endpoint string, in, out interface{}, want int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func queryViaHTTP(ctx context.Context, serverURL, question string) (*models.QueryResult, error) {
	var res models.QueryResult
	err := doJSON(ctx, http.MethodPost, serverURL+"/query", models.QueryRequest{Query: question}, &res, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func documentsViaHTTP(ctx context.Context, serverURL string) (*models.DocumentList, error) {
	var list models.DocumentList
	if err := doJSON(ctx, http.MethodGet, serverURL+"/documents", nil, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return &list, nil
}

func clearViaHTTP(ctx context.Context, serverURL string) error {
	return doJSON(ctx, http.MethodDelete, serverURL+"/documents", nil, nil, http.StatusOK)
}

func watchListViaHTTP(ctx context.Context, serverURL string) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := doJSON(ctx, http.MethodGet, serverURL+"/watch/directories", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

func watchAddViaHTTP(ctx context.Context, serverURL, path string) error {
	in := map[string]interface{}{"path": path, "sync": true}
	return doJSON(ctx, http.MethodPost, serverURL+"/watch/directories", in, nil, http.StatusCreated)
}

func watchRemoveViaHTTP(ctx context.Context, serverURL, path string) error {
	return doJSON(ctx, http.MethodDelete, serverURL+"/watch/directories?path="+url.QueryEscape(path), nil, nil, http.StatusOK)
}

// uploadViaHTTP sends one PDF to /upload-single.
func uploadViaHTTP(ctx context.Context, serverURL, path string) (*models.IngestionResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/upload-single", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out models.SingleUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &models.IngestionResult{
		Filename:      filepath.Base(path),
		ChunksCreated: out.ChunksCreated,
		TextLength:    out.TextLength,
	}, nil
}

// confirm asks a yes/no question and reports whether the answer was yes.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
