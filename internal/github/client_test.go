package github

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OlegWock/surek/internal/config"
	"github.com/OlegWock/surek/internal/errdefs"
)

func testSource() config.Source {
	return config.Source{Type: config.SourceGitHub, Slug: "owner/repo#main"}
}

func testClient(serverURL, token string) *Client {
	return &Client{token: token, httpc: http.DefaultClient, BaseURL: serverURL}
}

func TestLatestCommit(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/repos/owner/repo/commits/main" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"sha": "abc1234def"}`))
	}))
	defer server.Close()

	client := testClient(server.URL, "tok123")
	sha, err := client.LatestCommit(context.Background(), testSource())
	if err != nil {
		t.Fatalf("LatestCommit() error: %v", err)
	}
	if sha != "abc1234def" {
		t.Errorf("sha = %q", sha)
	}
	if gotAuth != "token tok123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestLatestCommitErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   string
	}{
		{"not found", http.StatusNotFound, "repository or ref not found"},
		{"unauthorized", http.StatusUnauthorized, "authentication failed"},
		{"server error", http.StatusInternalServerError, "GitHub API error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			_, err := testClient(server.URL, "").LatestCommit(context.Background(), testSource())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("LatestCommit() = %v, want %q", err, tc.want)
			}
			if !errdefs.IsKind(err, errdefs.KindSource) {
				t.Errorf("error kind = %v", err)
			}
		})
	}
}

// buildZipball builds an in-memory archive mimicking a GitHub zipball.
func buildZipball(t *testing.T, rootFolder string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	if rootFolder != "" {
		if _, err := writer.Create(rootFolder + "/"); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		f, err := writer.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		f.Write([]byte(content))
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDownloadArchive(t *testing.T) {
	zipball := buildZipball(t, "owner-repo-abc1234", map[string]string{
		"owner-repo-abc1234/docker-compose.yml": "services: {}\n",
		"owner-repo-abc1234/sub/file.txt":       "hello",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/zipball/main" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write(zipball)
	}))
	defer server.Close()

	target := filepath.Join(t.TempDir(), "project")
	sha, err := testClient(server.URL, "").DownloadArchive(context.Background(), testSource(), target)
	if err != nil {
		t.Fatalf("DownloadArchive() error: %v", err)
	}
	if sha != "abc1234" {
		t.Errorf("sha = %q, want suffix after final hyphen", sha)
	}

	content, err := os.ReadFile(filepath.Join(target, "docker-compose.yml"))
	if err != nil || string(content) != "services: {}\n" {
		t.Errorf("compose file = %q, %v", content, err)
	}
	nested, err := os.ReadFile(filepath.Join(target, "sub", "file.txt"))
	if err != nil || string(nested) != "hello" {
		t.Errorf("nested file = %q, %v", nested, err)
	}
}

func TestDownloadArchiveBadZip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a zip"))
	}))
	defer server.Close()

	_, err := testClient(server.URL, "").DownloadArchive(context.Background(), testSource(), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "bad archive") {
		t.Errorf("DownloadArchive() = %v, want bad archive", err)
	}
}

func TestDownloadArchiveMultipleRoots(t *testing.T) {
	zipball := buildZipball(t, "", map[string]string{
		"first/file.txt":  "a",
		"second/file.txt": "b",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipball)
	}))
	defer server.Close()

	_, err := testClient(server.URL, "").DownloadArchive(context.Background(), testSource(), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "single root folder") {
		t.Errorf("DownloadArchive() = %v, want single-root error", err)
	}
}

func TestDownloadArchiveNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL, "").DownloadArchive(context.Background(), testSource(), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "repository or ref not found") {
		t.Errorf("DownloadArchive() = %v", err)
	}
}
