//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/portside-labs/portside/internal/api/handlers"
	"github.com/portside-labs/portside/internal/comms"
	"github.com/portside-labs/portside/internal/events"
	"github.com/portside-labs/portside/internal/matching"
	"github.com/portside-labs/portside/internal/repository"
	"github.com/portside-labs/portside/internal/server"
	"github.com/portside-labs/portside/internal/service"
	"github.com/portside-labs/portside/internal/storage"
	"github.com/portside-labs/portside/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	Comms        *FakeComms
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	OperatorID   string
	AuthToken    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers, a
// fake communication platform, and the HTTP server.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-evidence",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	fakeComms := NewFakeComms()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, s3Client, fakeComms.URL(), port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		Comms:        fakeComms,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Comms != nil {
		e.Comms.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Bootstrap creates an operator and an API key for authenticated calls.
func (e *E2ETestEnv) Bootstrap() {
	opResp, err := e.Post("/operators", map[string]string{
		"name":  "e2e-operator",
		"email": "e2e@example.com",
	}, "")
	if err != nil {
		e.T.Fatalf("failed to create operator: %v", err)
	}

	var opData struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(opResp.Data, &opData); err != nil {
		e.T.Fatalf("failed to parse operator response: %v", err)
	}
	e.OperatorID = opData.ID

	keyResp, err := e.Post("/apikeys", map[string]string{
		"operator_id": e.OperatorID,
		"name":        "e2e-test-key",
	}, "")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}

	var keyData struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(keyResp.Data, &keyData); err != nil {
		e.T.Fatalf("failed to parse key response: %v", err)
	}
	e.AuthToken = keyData.Token
}

// BuildBinaries builds the portside and portsided binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "portside-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "portsided"), "./cmd/portsided")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build portsided: %v\n%s", err, out)
	}

	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "portside"), "./cmd/portside")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build portside: %v\n%s", err, out)
	}
}

// RunPortside runs the portside CLI command
func (e *E2ETestEnv) RunPortside(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "portside"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("PORTSIDE_API_KEY=%s", e.AuthToken),
		fmt.Sprintf("PORTSIDE_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// DownloadFile downloads a file from the presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// FakeConversation is one conversation the fake platform can return.
type FakeConversation struct {
	ID            string     `json:"id"`
	Subject       *string    `json:"subject"`
	LastMessageAt *time.Time `json:"last_message_at"`
	Participants  []string   `json:"-"`
	// Body stands in for searchable message text: free-text queries
	// match against it in addition to the subject.
	Body string `json:"-"`
}

// FakeComms imitates the communication platform's search endpoint.
type FakeComms struct {
	mu            sync.Mutex
	conversations []FakeConversation
	server        *httptest.Server
}

func NewFakeComms() *FakeComms {
	f := &FakeComms{}
	f.server = httptest.NewServer(http.HandlerFunc(f.handleSearch))
	return f
}

func (f *FakeComms) URL() string { return f.server.URL }

func (f *FakeComms) Close() { f.server.Close() }

// AddConversation registers a conversation for subsequent searches.
func (f *FakeComms) AddConversation(conv FakeConversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = append(f.conversations, conv)
}

// Reset clears all registered conversations.
func (f *FakeComms) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = nil
}

func (f *FakeComms) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/conversations/search" {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	contact := r.URL.Query().Get("contact")
	query := r.URL.Query().Get("q")

	type participant struct {
		Handle string `json:"handle"`
	}
	type result struct {
		ID            string        `json:"id"`
		Subject       *string       `json:"subject"`
		LastMessageAt *time.Time    `json:"last_message_at"`
		Participants  []participant `json:"participants"`
	}

	results := make([]result, 0)
	for _, conv := range f.conversations {
		if !f.matches(conv, contact, query) {
			continue
		}
		res := result{
			ID:            conv.ID,
			Subject:       conv.Subject,
			LastMessageAt: conv.LastMessageAt,
		}
		for _, p := range conv.Participants {
			res.Participants = append(res.Participants, participant{Handle: p})
		}
		results = append(results, res)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": results})
}

func (f *FakeComms) matches(conv FakeConversation, contact, query string) bool {
	if contact != "" {
		for _, p := range conv.Participants {
			if strings.EqualFold(p, contact) {
				return true
			}
		}
		return false
	}
	if query != "" {
		q := strings.ToLower(query)
		if conv.Subject != nil && strings.Contains(strings.ToLower(*conv.Subject), q) {
			return true
		}
		return strings.Contains(strings.ToLower(conv.Body), q)
	}
	return false
}

// startServer wires the full application stack against the test
// containers and the fake communication platform.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, commsURL string, port int) (string, func()) {
	logger := zerolog.Nop()

	threadLinkRepo := repository.NewThreadLinkRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)
	jobRepo := repository.NewDiscoveryJobRepository(pool)
	operatorRepo := repository.NewOperatorRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)

	dispatcher := events.NewDispatcher(64, logger, events.NewLogSink(logger))
	dispatcher.Start(context.Background())

	archive := storage.NewEvidenceArchive(s3Client)

	searcher := comms.NewClient(comms.Config{
		BaseURL:  commsURL,
		APIToken: "test-token",
	})

	discoverySvc := service.NewDiscoveryService(service.DiscoveryServiceConfig{
		Links:      threadLinkRepo,
		Jobs:       jobRepo,
		Searcher:   searcher,
		Scorer:     matching.NewScorer(matching.DefaultWeights()),
		Classifier: matching.NewClassifier(matching.DefaultThresholds()),
		Audit:      auditRepo,
		Events:     dispatcher,
		Archive:    archive,
		Logger:     logger,
	})
	reviewSvc := service.NewReviewService(threadLinkRepo, auditRepo, dispatcher, logger)
	authSvc := service.NewAuthService(operatorRepo, apiKeyRepo, &service.DefaultUUIDGenerator{})

	threadHandler := handlers.NewThreadHandler(discoverySvc, reviewSvc, archive)
	authHandler := handlers.NewAuthHandler(authSvc)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator: authSvc,
		ThreadHandler: threadHandler,
		AuthHandler:   authHandler,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		dispatcher.Stop()
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
