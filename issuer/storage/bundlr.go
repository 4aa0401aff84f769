package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/h2non/gentleman.v2"
	"gopkg.in/h2non/gentleman.v2/plugins/timeout"

	"github.com/smartpassport/passport-node/issuer/errors"
)

// Bundlr uploads documents to Arweave through a Bundlr node.
type Bundlr struct {
	cli        *gentleman.Client
	gatewayURL string
}

// NewBundlr creates a Bundlr uploader. Returned URIs are rooted at gatewayURL.
func NewBundlr(nodeURL, gatewayURL string, requestTimeout time.Duration) *Bundlr {
	cli := gentleman.New().URL(nodeURL)
	if requestTimeout > 0 {
		cli.Use(timeout.Request(requestTimeout))
	}
	return &Bundlr{
		cli:        cli,
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
	}
}

// Store uploads data and returns its gateway URI. ctx is bound to the
// outgoing request so cancellation aborts the upload.
func (b *Bundlr) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	const op = "bundlr_upload"

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id, err := b.post(ctx, data, contentType)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.NewUploadError(op, "upload cancelled", ctxErr)
		}
		return "", errors.NewUploadError(op, "failed to upload to bundlr", err)
	}
	return fmt.Sprintf("%s/%s", b.gatewayURL, id), nil
}

func (b *Bundlr) post(ctx context.Context, data []byte, contentType string) (string, error) {
	req := b.cli.Post()
	req.Context.SetCancelContext(ctx)
	req.Path("/tx")
	req.SetHeader("Content-Type", contentType)
	req.Body(bytes.NewReader(data))

	resp, err := req.Send()
	if err != nil {
		return "", err
	}
	defer resp.Close()
	if !resp.Ok {
		return "", fmt.Errorf("send to bundlr request failed; http code: %d, errMsg: %s", resp.StatusCode, resp.String())
	}

	// Nodes answer either with a JSON receipt or with the bare id.
	body := strings.TrimSpace(resp.String())
	if gjson.Valid(body) {
		if id := gjson.Get(body, "id"); id.Exists() && id.String() != "" {
			return id.String(), nil
		}
		return "", fmt.Errorf("bundlr receipt has no id: %s", body)
	}
	if body == "" {
		return "", fmt.Errorf("bundlr returned an empty id")
	}
	return body, nil
}
