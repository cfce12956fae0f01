package hub

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// DefaultSampleLines is how many lines ValidateJSONL inspects.
const DefaultSampleLines = 5

// DeriveRepoName turns a JSONL filename into a repo name, e.g.
// SRD_CC_v5.2.1_pairs.jsonl becomes srd-cc-v5-2-1-pairs.
func DeriveRepoName(filename string) string {
	name := strings.ReplaceAll(filename, ".jsonl", "")
	name = strings.NewReplacer("_", "-", ".", "-").Replace(name)
	return strings.ToLower(name)
}

// CheckFilename rejects names containing path separators or "..".
func CheckFilename(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

// ValidateJSONL checks the first sampleLines lines of path for JSON objects
// with anchor and positive keys. Blank lines count toward the sample but are
// not checked.
func ValidateJSONL(path string, sampleLines int) error {
	if sampleLines <= 0 {
		sampleLines = DefaultSampleLines
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if fi.IsDir() {
		return fmt.Errorf("path is not a file: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for i := 0; i < sampleLines && sc.Scan(); i++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var data map[string]json.RawMessage
		if err := json.Unmarshal(line, &data); err != nil {
			return fmt.Errorf("invalid JSON at line %d: %w", i+1, err)
		}
		for _, key := range []string{"anchor", "positive"} {
			if _, ok := data[key]; !ok {
				return fmt.Errorf("line %d: missing %q key", i+1, key)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	return nil
}

// PushOptions selects what to publish.
type PushOptions struct {
	File     string
	RepoID   string
	Private  bool
	CardPath string
}

// Push validates File, creates the dataset repo and uploads the data as the
// train split, then the dataset card as README.md when it exists. It returns
// the dataset URL.
func (c *Client) Push(ctx context.Context, opts PushOptions, log *slog.Logger) (string, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := ValidateJSONL(opts.File, DefaultSampleLines); err != nil {
		return "", err
	}
	data, err := os.ReadFile(opts.File)
	if err != nil {
		return "", err
	}
	pairs := countLines(data)

	repoID := opts.RepoID
	if !strings.Contains(repoID, "/") {
		user, err := c.WhoAmI(ctx)
		if err != nil {
			return "", err
		}
		repoID = user + "/" + repoID
		log.Info("Resolved full repo path", "repo_id", repoID)
	}

	log.Info("Pushing dataset to Hugging Face Hub", "repo_id", repoID, "private", opts.Private, "pairs", pairs)
	if err := c.CreateRepo(ctx, repoID, opts.Private); err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Upload dataset with %d anchor-positive pairs", pairs)
	if err := c.UploadFile(ctx, repoID, "data/train.jsonl", data, msg); err != nil {
		return "", err
	}
	url := c.DatasetURL(repoID)
	log.Info("Dataset pushed successfully", "url", url)

	if opts.CardPath == "" {
		return url, nil
	}
	card, err := os.ReadFile(opts.CardPath)
	if err != nil {
		log.Warn("Dataset card not found", "path", opts.CardPath)
		return url, nil
	}
	if err := c.UploadFile(ctx, repoID, "README.md", card, "Update README with dataset documentation"); err != nil {
		return url, err
	}
	log.Info("README.md updated successfully")
	return url, nil
}

func countLines(data []byte) int {
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}
