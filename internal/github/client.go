// Package github fetches stack sources as repository archives and keeps
// the per-stack commit cache that lets deploys skip redundant downloads.
package github

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	cp "github.com/otiai10/copy"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/errdefs"
	"github.com/OlegWock/surek/internal/logging"
)

const (
	apiBase         = "https://api.github.com"
	commitTimeout   = 30 * time.Second
	downloadTimeout = 120 * time.Second
)

// Client talks to the GitHub commits and zipball endpoints. The token is
// optional; without it only public repositories are reachable.
type Client struct {
	token string
	httpc *http.Client

	// BaseURL is overridable in tests.
	BaseURL string
}

// NewClient builds a Client, taking the PAT from cfg when present.
func NewClient(cfg *config.SurekConfig) *Client {
	token := ""
	if cfg.GitHub != nil {
		token = cfg.GitHub.PAT
	}
	return &Client{token: token, httpc: http.DefaultClient, BaseURL: apiBase}
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	return req, nil
}

func statusError(src config.Source, status int) error {
	switch status {
	case http.StatusNotFound:
		return errdefs.Sourcef("repository or ref not found: %s/%s#%s", src.Owner(), src.Repo(), src.Ref())
	case http.StatusUnauthorized:
		return errdefs.Source("GitHub authentication failed. Check your PAT.")
	default:
		return errdefs.Sourcef("GitHub API error: %d", status)
	}
}

// LatestCommit queries the current commit SHA of the source's ref.
func (c *Client) LatestCommit(ctx context.Context, src config.Source) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.BaseURL, src.Owner(), src.Repo(), src.Ref())
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return "", errdefs.SourceWrap(err, "building commit request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errdefs.SourceWrap(err, "failed to connect to GitHub")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(src, resp.StatusCode)
	}

	var payload struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errdefs.SourceWrap(err, "decoding commit response")
	}
	return payload.SHA, nil
}

// DownloadArchive fetches the zipball for the source's ref and unpacks
// its contents into targetDir. Returns the commit SHA derived from the
// archive's single root folder name.
func (c *Client) DownloadArchive(ctx context.Context, src config.Source, targetDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	logging.Info("Downloading GitHub repo " + src.Slug)

	url := fmt.Sprintf("%s/repos/%s/%s/zipball/%s", c.BaseURL, src.Owner(), src.Repo(), src.Ref())
	logging.Log.Debug().Str("url", url).Msg("fetching zipball")
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return "", errdefs.SourceWrap(err, "building archive request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errdefs.SourceWrap(err, "failed to download from GitHub")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(src, resp.StatusCode)
	}

	archive, err := os.CreateTemp("", "surek-zipball-*.zip")
	if err != nil {
		return "", errdefs.SourceWrap(err, "creating temp file")
	}
	defer os.Remove(archive.Name())

	if _, err := io.Copy(archive, resp.Body); err != nil {
		archive.Close()
		return "", errdefs.SourceWrap(err, "saving archive")
	}
	archive.Close()

	sha, err := unpackArchive(archive.Name(), targetDir)
	if err != nil {
		return "", err
	}
	logging.Dim("Downloaded and unpacked repo content.")
	return sha, nil
}

// unpackArchive extracts a zipball, verifies the single-root-folder
// layout GitHub produces (owner-repo-shortsha/) and copies that folder's
// contents into targetDir.
func unpackArchive(archivePath, targetDir string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", errdefs.SourceWrap(err, "bad archive")
	}
	defer reader.Close()

	tempDir, err := os.MkdirTemp("", "surek-unpack-*")
	if err != nil {
		return "", errdefs.SourceWrap(err, "creating temp dir")
	}
	defer os.RemoveAll(tempDir)

	for _, file := range reader.File {
		if err := extractOne(file, tempDir); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return "", errdefs.SourceWrap(err, "reading unpacked archive")
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", errdefs.Source("expected a single root folder in the zip file")
	}

	rootName := entries[0].Name()
	sha := rootName[strings.LastIndex(rootName, "-")+1:]

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", errdefs.SourceWrap(err, "creating project directory")
	}
	if err := cp.Copy(filepath.Join(tempDir, rootName), targetDir); err != nil {
		return "", errdefs.SourceWrap(err, "copying archive contents")
	}
	return sha, nil
}

func extractOne(file *zip.File, destDir string) error {
	// Reject entries escaping the destination (zip slip).
	dest := filepath.Join(destDir, filepath.Clean(file.Name))
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return errdefs.Sourcef("bad archive: illegal path %q", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errdefs.SourceWrap(err, "bad archive")
	}

	src, err := file.Open()
	if err != nil {
		return errdefs.SourceWrap(err, "bad archive")
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, file.Mode().Perm())
	if err != nil {
		return errdefs.SourceWrap(err, "bad archive")
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errdefs.SourceWrap(err, "bad archive")
	}
	return nil
}
