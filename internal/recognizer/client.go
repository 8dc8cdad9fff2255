// Package recognizer is the Image Recogniser HTTP client: multipart-upload
// a captured JPEG and get back classified objects. Uses the same
// bounded-timeout http.Client shape as the other HTTP clients in this
// module, adapted to a multipart.Writer body built incrementally rather
// than via json.Marshal.
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the Image Recogniser HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting baseURL with the default 30s bounded
// timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Detect is one classified object, with ResolvedID already computed: the
// object's img_id if present and non-negative, otherwise its class label
// looked up in the fixed symbol table.
type Detect struct {
	ClassLabel string
	ResolvedID int
	Resolvable bool
}

// Detect uploads the JPEG at jpegPath along with obstacleID and returns the
// recogniser's classification. Each object's id is its img_id when present
// and non-negative, otherwise its class label translated via Symbol.
func (c *Client) Detect(ctx context.Context, jpegPath string, obstacleID int) ([]Detect, error) {
	f, err := os.Open(jpegPath)
	if err != nil {
		return nil, fmt.Errorf("recognizer: open %s: %w", jpegPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("image", jpegPath)
	if err != nil {
		return nil, fmt.Errorf("recognizer: create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("recognizer: copy image: %w", err)
	}
	if err := mw.WriteField("object_id", fmt.Sprintf("%d", obstacleID)); err != nil {
		return nil, fmt.Errorf("recognizer: write object_id field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("recognizer: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
	if err != nil {
		return nil, fmt.Errorf("recognizer: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("recognizer: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognizer: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Detected int `json:"detected"`
		Count    int `json:"count"`
		Objects  []struct {
			ClassLabel string `json:"class_label"`
			ImgID      *int   `json:"img_id"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("recognizer: unmarshal response: %w", err)
	}

	if parsed.Count <= 0 {
		return nil, nil
	}

	out := make([]Detect, 0, len(parsed.Objects))
	for _, o := range parsed.Objects {
		resolved, resolvable := -1, false
		switch {
		case o.ImgID != nil && *o.ImgID >= 0:
			resolved, resolvable = *o.ImgID, true
		default:
			if id, ok := Symbol(o.ClassLabel); ok {
				resolved, resolvable = id, true
			} else {
				log.Printf("[RECOGNIZER] unresolved class label %q, skipped", o.ClassLabel)
			}
		}
		out = append(out, Detect{ClassLabel: o.ClassLabel, ResolvedID: resolved, Resolvable: resolvable})
	}
	return out, nil
}

// First returns the first resolvable detection, and false if none resolved:
// the first object whose resolvable image identifier is non-negative.
func First(detections []Detect) (Detect, bool) {
	for _, d := range detections {
		if d.Resolvable {
			return d, true
		}
	}
	return Detect{}, false
}

// Symbol maps a recogniser class label to its fixed numeric id: digits 1-9
// -> 11-19, letters A-H,S-Z -> 20-35, arrows -> 36-39, Stop -> 40. An
// unrecognised label returns ok=false; the caller logs it and moves on to
// the next object.
func Symbol(classLabel string) (id int, ok bool) {
	id, ok = symbolTable[classLabel]
	return id, ok
}

var symbolTable = buildSymbolTable()

func buildSymbolTable() map[string]int {
	t := make(map[string]int)
	for i, digit := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"} {
		t[digit] = 11 + i
	}
	letters := []string{"A", "B", "C", "D", "E", "F", "G", "H", "S", "T", "U", "V", "W", "X", "Y", "Z"}
	for i, l := range letters {
		t[l] = 20 + i
	}
	t["Up"] = 36
	t["Down"] = 37
	t["Right"] = 38
	t["Left"] = 39
	t["Stop"] = 40
	return t
}
