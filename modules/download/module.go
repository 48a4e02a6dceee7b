// Package download provides the download transform: it fetches a URL into
// the transform's single file output, retrying transient failures with
// exponential backoff. When the output already matches its expected digest
// the fetch is skipped entirely.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"

	"github.com/castorbuild/castor/internal/build"
	"github.com/castorbuild/castor/internal/ctxlog"
	"github.com/castorbuild/castor/internal/registry"
)

// Input is the arguments block of a download transform.
type Input struct {
	URL     string `hcl:"url"`
	Retries uint64 `hcl:"retries,optional"`
}

func onRunDownload(ctx context.Context, input *Input, tio *build.IO) error {
	logger := ctxlog.FromContext(ctx)

	if len(tio.Outputs) != 1 {
		return fmt.Errorf("download requires exactly one output, got %d", len(tio.Outputs))
	}
	out := tio.Outputs[0]
	if out.Kind() != build.KindFile {
		return fmt.Errorf("download output %s must be a file", out)
	}

	expected := out.ExpectedDigest()
	if !expected.IsZero() {
		current, err := out.Digest()
		if err != nil {
			return err
		}
		if current == expected {
			logger.Info("⏭️ output already matches its expected digest; skipping download",
				"artifact", out.Name(), "digest", expected)
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(out.Name()), 0o755); err != nil {
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), input.Retries), ctx)
	operation := func() error {
		logger.Info("⬇️ downloading", "url", input.URL, "artifact", out.Name())
		return fetch(ctx, input.URL, out.Name())
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("downloading %s: %w", input.URL, err)
	}

	if !expected.IsZero() {
		current, err := out.Digest()
		if err != nil {
			return err
		}
		if current != expected {
			return fmt.Errorf("downloaded %s has digest %s, expected %s", out.Name(), current, expected)
		}
	}
	return nil
}

func fetch(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return backoff.Permanent(fmt.Errorf("server returned %s", resp.Status))
	}

	f, err := os.Create(path)
	if err != nil {
		return backoff.Permanent(err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return f.Close()
}

// Module registers the download transform kind.
type Module struct{}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTransform("download", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       onRunDownload,
	})
}
