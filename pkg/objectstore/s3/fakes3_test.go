package s3

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeS3 is a minimal path-style S3 endpoint for exercising the real SDK
// client: ListObjectsV2 with pagination, GetObject with byte ranges, and
// PutObject. State is per-test and guarded by a mutex.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte

	pageSize  int           // entries per listing page, 0 = all
	failList  bool          // return 500 on listing
	getDelay  time.Duration // sleep before answering GetObject
	requests  int           // total requests served
	listPages int           // listing pages served
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]map[string][]byte{}}
}

func (f *fakeS3) putObject(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buckets[bucket] == nil {
		f.buckets[bucket] = map[string][]byte{}
	}
	f.buckets[bucket][key] = data
}

func (f *fakeS3) object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.buckets[bucket][key]
	return data, ok
}

func (f *fakeS3) served() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeS3) pagesServed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listPages
}

func (f *fakeS3) start() *httptest.Server {
	return httptest.NewServer(f)
}

type listBucketResult struct {
	XMLName               xml.Name       `xml:"ListBucketResult"`
	Name                  string         `xml:"Name"`
	Prefix                string         `xml:"Prefix"`
	KeyCount              int            `xml:"KeyCount"`
	MaxKeys               int            `xml:"MaxKeys"`
	IsTruncated           bool           `xml:"IsTruncated"`
	NextContinuationToken string         `xml:"NextContinuationToken,omitempty"`
	Contents              []listContents `xml:"Contents"`
}

type listContents struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int    `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	bucket, key := splitRequestPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		f.serveList(w, r, bucket)
	case r.Method == http.MethodGet:
		f.serveGet(w, r, bucket, key)
	case r.Method == http.MethodPut:
		f.servePut(w, r, bucket, key)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func splitRequestPath(path string) (bucket, key string) {
	path = strings.TrimPrefix(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

func (f *fakeS3) serveList(w http.ResponseWriter, r *http.Request, bucket string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listPages++

	if f.failList {
		writeS3Error(w, http.StatusInternalServerError, "InternalError", "injected listing failure")
		return
	}

	prefix := r.URL.Query().Get("prefix")

	keys := make([]string, 0, len(f.buckets[bucket]))
	for k := range f.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	offset := 0
	if token := r.URL.Query().Get("continuation-token"); token != "" {
		offset, _ = strconv.Atoi(token)
	}
	if offset > len(keys) {
		offset = len(keys)
	}

	end := len(keys)
	if f.pageSize > 0 && offset+f.pageSize < end {
		end = offset + f.pageSize
	}

	result := listBucketResult{
		Name:        bucket,
		Prefix:      prefix,
		KeyCount:    end - offset,
		MaxKeys:     1000,
		IsTruncated: end < len(keys),
	}
	if result.IsTruncated {
		result.NextContinuationToken = strconv.Itoa(end)
	}
	for _, k := range keys[offset:end] {
		result.Contents = append(result.Contents, listContents{
			Key:          k,
			LastModified: "2024-05-01T12:00:00.000Z",
			ETag:         `"d41d8cd98f00b204e9800998ecf8427e"`,
			Size:         len(f.buckets[bucket][k]),
			StorageClass: "STANDARD",
		})
	}

	out, _ := xml.Marshal(result)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func (f *fakeS3) serveGet(w http.ResponseWriter, r *http.Request, bucket, key string) {
	f.mu.Lock()
	delay := f.getDelay
	data, ok := f.buckets[bucket][key]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
		return
	}

	start, end, ranged, valid := parseRange(r.Header.Get("Range"), len(data))
	if !valid {
		writeS3Error(w, http.StatusRequestedRangeNotSatisfiable, "InvalidRange", "The requested range is not satisfiable")
		return
	}

	body := data[start : end+1]
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	if ranged {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.Write(body)
}

// parseRange handles "bytes=a-b" and "bytes=a-" forms. end is inclusive and
// clamped to the object size, matching S3 behavior.
func parseRange(header string, size int) (start, end int, ranged, valid bool) {
	if header == "" {
		if size == 0 {
			return 0, -1, false, true
		}
		return 0, size - 1, false, true
	}

	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, true, false
	}

	from, to, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, true, false
	}

	start, err := strconv.Atoi(from)
	if err != nil || start >= size {
		return 0, 0, true, false
	}

	end = size - 1
	if to != "" {
		end, err = strconv.Atoi(to)
		if err != nil {
			return 0, 0, true, false
		}
		if end > size-1 {
			end = size - 1
		}
	}
	if end < start {
		return 0, 0, true, false
	}

	return start, end, true, true
}

func (f *fakeS3) servePut(w http.ResponseWriter, r *http.Request, bucket, key string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeS3Error(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}

	if strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		body = decodeAWSChunked(body)
	}

	f.putObject(bucket, key, body)
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

// decodeAWSChunked strips aws-chunked framing: hex chunk sizes with optional
// ;chunk-signature extensions, terminated by a zero-length chunk and
// trailers.
func decodeAWSChunked(body []byte) []byte {
	var out bytes.Buffer
	reader := bufio.NewReader(bytes.NewReader(body))

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		sizeSpec := strings.TrimRight(line, "\r\n")
		if i := strings.Index(sizeSpec, ";"); i >= 0 {
			sizeSpec = sizeSpec[:i]
		}
		size, err := strconv.ParseInt(sizeSpec, 16, 64)
		if err != nil || size == 0 {
			break
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(reader, chunk); err != nil {
			break
		}
		out.Write(chunk)
		// Trailing CRLF after each chunk
		_, _ = reader.ReadString('\n')
	}

	return out.Bytes()
}

func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>fake</RequestId></Error>`, code, message)
}
