package wiki

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/igem-tools/wikipub/metrics"
)

// UploadArgs describes one file attachment upload. Title must already be
// the canonical namespaced title.
type UploadArgs struct {
	Title    string
	FilePath string
	Comment  string
}

// UploadResult is the outcome of an upload handshake
type UploadResult struct {
	Success bool
	URL     string
	MIME    string
}

// chunkSession is the transient state of one chunked upload. The remote
// filekey binds every chunk to the same assembling upload and the remote
// offset is authoritative: both always overwrite local state when the
// server reports them.
type chunkSession struct {
	offset    int64
	fileKey   string
	totalSize int64
}

// Upload publishes a file as an attachment. Files below the configured
// chunk size go up in a single request; larger files use the chunked
// protocol with a final commit. In dry-run mode no request is sent and a
// deterministic placeholder URL/MIME is synthesized, with the same
// control flow otherwise.
func (c *Client) Upload(ctx context.Context, args UploadArgs) (UploadResult, error) {
	if args.Title == "" {
		return UploadResult{}, &ValidationError{Field: "title", Message: "destination title is required"}
	}
	if args.FilePath == "" {
		return UploadResult{}, &ValidationError{Field: "file_path", Message: "source path is required"}
	}

	info, err := os.Stat(args.FilePath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("cannot stat %s: %w", args.FilePath, err)
	}

	token, err := c.token(ctx)
	if err != nil {
		return UploadResult{}, err
	}

	if info.Size() < c.config.ChunkSize {
		return c.uploadDirect(ctx, args, token)
	}
	return c.uploadChunked(ctx, args, token, info.Size())
}

// uploadDirect performs the single-shot upload. A Warning response (for
// example a duplicate of an existing file) is retried exactly once,
// reusing the returned filekey with ignorewarnings set; a second warning
// is terminal.
func (c *Client) uploadDirect(ctx context.Context, args UploadArgs, token string) (UploadResult, error) {
	if c.config.DryRun {
		c.logger.Debug("Dry run: direct upload", "title", args.Title)
		return c.dryRunResult(args.Title), nil
	}

	data, err := os.ReadFile(args.FilePath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("cannot read %s: %w", args.FilePath, err)
	}

	fields := url.Values{}
	fields.Set("action", "upload")
	fields.Set("filename", args.Title)
	fields.Set("token", token)
	if args.Comment != "" {
		fields.Set("comment", args.Comment)
	}

	resp, err := c.apiUpload(ctx, fields, "file", filepath.Base(args.FilePath), data)
	if err != nil {
		return UploadResult{}, err
	}
	if err := apiError(resp); err != nil {
		return UploadResult{}, &UploadError{Code: UploadCodeFailed, Title: args.Title, Message: err.Error()}
	}
	metrics.UploadBytes.Add(float64(len(data)))

	upload := getMap(resp["upload"])
	if getString(upload["result"]) == "Warning" {
		key := getString(upload["filekey"])
		warnings := collectWarnings(upload)
		c.logger.Warn("Upload returned warning, retrying with ignorewarnings",
			"title", args.Title, "filekey", key, "warnings", warnings)

		retry := url.Values{}
		retry.Set("action", "upload")
		retry.Set("filename", args.Title)
		retry.Set("token", token)
		retry.Set("filekey", key)
		retry.Set("ignorewarnings", "1")
		if args.Comment != "" {
			retry.Set("comment", args.Comment)
		}

		resp, err = c.apiRequest(ctx, retry)
		if err != nil {
			return UploadResult{}, err
		}
		if err := apiError(resp); err != nil {
			return UploadResult{}, &UploadError{Code: UploadCodeFailed, Title: args.Title, Message: err.Error()}
		}
		upload = getMap(resp["upload"])

		// One retry only: a second warning is final failure
		if getString(upload["result"]) == "Warning" {
			return UploadResult{}, &UploadError{
				Code:     UploadCodeWarning,
				Title:    args.Title,
				Message:  "warning persisted after ignorewarnings retry",
				Warnings: collectWarnings(upload),
			}
		}
	}

	return finishUpload(upload, args.Title)
}

// uploadChunked streams the file in fixed-size chunks and commits the
// assembled upload with the final filekey. The loop is bounded: a remote
// end that neither consumes bytes nor errors cannot spin it forever.
func (c *Client) uploadChunked(ctx context.Context, args UploadArgs, token string, totalSize int64) (UploadResult, error) {
	session := &chunkSession{totalSize: totalSize}

	if c.config.DryRun {
		c.logger.Debug("Dry run: chunked upload", "title", args.Title, "size", totalSize)
		session.fileKey = "dry-run-" + uuid.NewString()
		session.offset = totalSize
		return c.dryRunResult(args.Title), nil
	}

	src, err := os.Open(args.FilePath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("cannot open %s: %w", args.FilePath, err)
	}
	defer src.Close()

	// Enough for every chunk plus slack for offset corrections
	maxRequests := totalSize/c.config.ChunkSize + 8
	buf := make([]byte, c.config.ChunkSize)

	for sent := int64(0); session.offset < totalSize; sent++ {
		if sent >= maxRequests {
			return UploadResult{}, &ChunkProtocolError{
				Code:   ChunkCodeExceeded,
				Title:  args.Title,
				Offset: session.offset,
				Reason: fmt.Sprintf("no progress after %d chunk requests", maxRequests),
			}
		}

		if _, err := src.Seek(session.offset, io.SeekStart); err != nil {
			return UploadResult{}, fmt.Errorf("cannot seek %s: %w", args.FilePath, err)
		}
		n, err := io.ReadFull(src, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			err = nil
		}
		if err != nil {
			return UploadResult{}, fmt.Errorf("cannot read %s: %w", args.FilePath, err)
		}
		if n == 0 {
			break
		}

		upload, err := c.uploadChunk(ctx, args.Title, token, session, buf[:n])
		if err != nil {
			return UploadResult{}, err
		}

		// Remote-reported values are authoritative
		if key := getString(upload["filekey"]); key != "" {
			session.fileKey = key
		}
		if _, ok := upload["offset"]; ok {
			session.offset = getInt64(upload["offset"])
		} else {
			session.offset += int64(n)
		}

		switch getString(upload["result"]) {
		case "Success":
			session.offset = totalSize
		case "Continue", "":
			if session.fileKey == "" {
				return UploadResult{}, &ChunkProtocolError{
					Code:   ChunkCodeMalformed,
					Title:  args.Title,
					Offset: session.offset,
					Reason: "chunk accepted but no filekey assigned",
				}
			}
		default:
			return UploadResult{}, &ChunkProtocolError{
				Code:   ChunkCodeError,
				Title:  args.Title,
				Offset: session.offset,
				Reason: fmt.Sprintf("remote result %q", getString(upload["result"])),
			}
		}
	}

	return c.commitChunks(ctx, args, token, session)
}

// uploadChunk sends one chunk with the current session state
func (c *Client) uploadChunk(ctx context.Context, title, token string, session *chunkSession, chunk []byte) (map[string]interface{}, error) {
	fields := url.Values{}
	fields.Set("action", "upload")
	fields.Set("filename", title)
	fields.Set("token", token)
	fields.Set("stash", "1")
	fields.Set("filesize", strconv.FormatInt(session.totalSize, 10))
	fields.Set("offset", strconv.FormatInt(session.offset, 10))
	if session.fileKey != "" {
		fields.Set("filekey", session.fileKey)
	}

	resp, err := c.apiUpload(ctx, fields, "chunk", "chunk.bin", chunk)
	if err != nil {
		return nil, err
	}
	if err := apiError(resp); err != nil {
		return nil, &ChunkProtocolError{
			Code:   ChunkCodeError,
			Title:  title,
			Offset: session.offset,
			Reason: err.Error(),
		}
	}
	metrics.ChunkRequests.Inc()
	metrics.UploadBytes.Add(float64(len(chunk)))

	upload := getMap(resp["upload"])
	if upload == nil {
		return nil, &ChunkProtocolError{
			Code:   ChunkCodeMalformed,
			Title:  title,
			Offset: session.offset,
			Reason: "no upload payload in chunk response",
		}
	}
	return upload, nil
}

// commitChunks finalizes file assembly using the filekey only
func (c *Client) commitChunks(ctx context.Context, args UploadArgs, token string, session *chunkSession) (UploadResult, error) {
	if session.fileKey == "" {
		return UploadResult{}, &ChunkProtocolError{
			Code:   ChunkCodeMalformed,
			Title:  args.Title,
			Offset: session.offset,
			Reason: "chunk loop finished without a filekey",
		}
	}

	params := url.Values{}
	params.Set("action", "upload")
	params.Set("filename", args.Title)
	params.Set("filekey", session.fileKey)
	params.Set("token", token)
	params.Set("ignorewarnings", "1")
	if args.Comment != "" {
		params.Set("comment", args.Comment)
	}

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return UploadResult{}, err
	}
	if err := apiError(resp); err != nil {
		return UploadResult{}, &UploadError{Code: UploadCodeFailed, Title: args.Title, Message: err.Error()}
	}

	return finishUpload(getMap(resp["upload"]), args.Title)
}

// finishUpload extracts the final URL and MIME. Success is signaled by
// the presence of imageinfo; anything else is terminal failure.
func finishUpload(upload map[string]interface{}, title string) (UploadResult, error) {
	imageinfo := getMap(upload["imageinfo"])
	if imageinfo == nil {
		return UploadResult{}, &UploadError{
			Code:    UploadCodeFailed,
			Title:   title,
			Message: fmt.Sprintf("no imageinfo in response (result %q)", getString(upload["result"])),
		}
	}
	return UploadResult{
		Success: true,
		URL:     getString(imageinfo["url"]),
		MIME:    getString(imageinfo["mime"]),
	}, nil
}

// dryRunResult is the documented placeholder for skipped uploads
func (c *Client) dryRunResult(title string) UploadResult {
	return UploadResult{
		Success: true,
		URL:     "http://DRY.RUN/" + title,
		MIME:    "text/plain",
	}
}

func collectWarnings(upload map[string]interface{}) []string {
	var out []string
	for k, v := range getMap(upload["warnings"]) {
		out = append(out, fmt.Sprintf("%s: %v", k, v))
	}
	return out
}
