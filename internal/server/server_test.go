package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/queue"
	mid "github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/ambiguity"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/common"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/extract"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/graph"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/loader"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/store/memory"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

const testAPIKey = "secret"

type fakeFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *fakeFiles) PutFile(ctx context.Context, key string, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return nil
}

func (f *fakeFiles) DeleteFile(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

type fakeChannel struct {
	mu       sync.Mutex
	messages map[string][][]byte
	fail     bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	return amqp091.Queue{Name: name}, nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broker down")
	}
	c.messages[key] = append(c.messages[key], msg.Body)
	return nil
}

type fixedExtractor extract.CandidateSet

func (e fixedExtractor) Extract(ctx context.Context, chunk common.Chunk, knownProcesses, knownRoles []string) (extract.CandidateSet, error) {
	return extract.CandidateSet(e), nil
}

type testEnv struct {
	e     *echo.Echo
	files *fakeFiles
	ch    *fakeChannel
	graph *graph.GraphClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := memory.NewGraphMemoryStorage()
	g, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Extractor: fixedExtractor{
			Processes: []extract.ProcessCandidate{{Name: "Leave Request"}},
			Roles:     []extract.RoleCandidate{{Name: "Employee"}},
			Tasks: []extract.TaskCandidate{
				{Index: 0, Name: "Submit request", ParentProcess: "Leave Request", PerformerRole: "Employee"},
				{Index: 1, Name: "Approve request", ParentProcess: "Leave Request"},
			},
		},
		Store: s,
	})
	if err != nil {
		t.Fatalf("NewGraphClient: %v", err)
	}
	env := &testEnv{
		files: &fakeFiles{files: make(map[string][]byte)},
		ch:    &fakeChannel{messages: make(map[string][][]byte)},
		graph: g,
	}
	env.e = New(&mid.App{
		Graph:          g,
		Store:          s,
		Ambiguities:    ambiguity.NewService(ambiguity.NewServiceParams{Store: s}),
		Queue:          env.ch,
		Files:          env.files,
		MasterAPIKey:   testAPIKey,
		MasterUserID:   1,
		MasterUserRole: "admin",
	})
	return env
}

func (env *testEnv) convert(t *testing.T) (string, *graph.RunResult) {
	t.Helper()
	doc := uuid.NewString()
	res, err := env.graph.ConvertDocument(context.Background(), doc, loader.StaticChunkSource{
		{ID: loader.ChunkID(doc, 0), DocumentID: doc, Page: 1, Text: "Employees submit leave requests."},
	})
	if err != nil {
		t.Fatalf("ConvertDocument: %v", err)
	}
	return doc, res
}

func (env *testEnv) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func upload(t *testing.T, name string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte("%PDF-1.4 test"))
	w.Close()
	return body, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"unknown token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents/x/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.e.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestUploadDocument(t *testing.T) {
	env := newTestEnv(t)
	body, ct := upload(t, "handbook.pdf")
	rec := env.do(http.MethodPost, "/api/documents", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		DocumentID    string `json:"document_id"`
		CorrelationID string `json:"correlation_id"`
	}
	decode(t, rec, &resp)
	key := "documents/" + resp.DocumentID + ".pdf"
	if string(env.files.files[key]) != "%PDF-1.4 test" {
		t.Fatalf("upload not stored under %s", key)
	}

	msgs := env.ch.messages[queue.ConvertQueue]
	if len(msgs) != 1 {
		t.Fatalf("expected one queued conversion, got %d", len(msgs))
	}
	var msg queue.ConvertMsg
	if err := json.Unmarshal(msgs[0], &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.DocumentID != resp.DocumentID || msg.FileKey != key || msg.CorrelationID != resp.CorrelationID {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestUploadDocumentRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	body, ct := upload(t, "notes.txt")
	if rec := env.do(http.MethodPost, "/api/documents", body, ct); rec.Code != http.StatusBadRequest {
		t.Fatalf("upload = %d, want 400", rec.Code)
	}
	if len(env.files.files) != 0 {
		t.Fatalf("rejected upload was stored")
	}
}

func TestUploadDocumentRemovesFileWhenQueueFails(t *testing.T) {
	env := newTestEnv(t)
	env.ch.fail = true
	body, ct := upload(t, "handbook.pdf")
	if rec := env.do(http.MethodPost, "/api/documents", body, ct); rec.Code != http.StatusInternalServerError {
		t.Fatalf("upload = %d, want 500", rec.Code)
	}
	if len(env.files.files) != 0 {
		t.Fatalf("orphaned upload left behind")
	}
}

func TestDocumentStatus(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodGet, "/api/documents/unknown/status", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown status = %d, want 404", rec.Code)
	}

	doc, _ := env.convert(t)
	rec := env.do(http.MethodGet, "/api/documents/"+doc+"/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status graph.DocumentStatus `json:"status"`
	}
	decode(t, rec, &resp)
	if resp.Status.Status != graph.CheckpointCompleted || resp.Status.NextChunk != 1 || resp.Status.ChunksTotal != 1 {
		t.Fatalf("unexpected status %+v", resp.Status)
	}
}

func TestDocumentProcesses(t *testing.T) {
	env := newTestEnv(t)
	doc, _ := env.convert(t)

	rec := env.do(http.MethodGet, "/api/documents/"+doc+"/processes", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("processes = %d", rec.Code)
	}
	var resp struct {
		Processes []struct {
			Process map[string]any   `json:"process"`
			Tasks   []map[string]any `json:"tasks"`
		} `json:"processes"`
	}
	decode(t, rec, &resp)
	if len(resp.Processes) != 1 {
		t.Fatalf("expected one process, got %d", len(resp.Processes))
	}
	if resp.Processes[0].Process["name"] != "Leave Request" || len(resp.Processes[0].Tasks) != 2 {
		t.Fatalf("unexpected process view %+v", resp.Processes[0])
	}
}

func TestResolveAmbiguity(t *testing.T) {
	env := newTestEnv(t)
	doc, res := env.convert(t)
	if len(res.Ambiguities) == 0 {
		t.Fatalf("expected a missing-role question")
	}

	rec := env.do(http.MethodGet, "/api/documents/"+doc+"/ambiguities", nil, "")
	var list struct {
		Ambiguities []common.Ambiguity `json:"ambiguities"`
	}
	decode(t, rec, &list)
	if len(list.Ambiguities) != len(res.Ambiguities) {
		t.Fatalf("listed %d questions, want %d", len(list.Ambiguities), len(res.Ambiguities))
	}
	id := list.Ambiguities[0].ID

	tests := []struct {
		name string
		id   string
		body string
		want int
	}{
		{"empty answer", id, `{"answer":""}`, http.StatusBadRequest},
		{"unknown question", "nope", `{"answer":"Employee"}`, http.StatusNotFound},
		{"answer", id, `{"answer":"Employee"}`, http.StatusOK},
		{"answered twice", id, `{"answer":"Employee"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/ambiguities/"+tt.id+"/resolve", strings.NewReader(tt.body), echo.MIMEApplicationJSON)
			if rec.Code != tt.want {
				t.Fatalf("resolve = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec = env.do(http.MethodGet, "/api/ambiguities/"+id, nil, "")
	var one struct {
		Ambiguity common.Ambiguity `json:"ambiguity"`
	}
	decode(t, rec, &one)
	if one.Ambiguity.Status != common.AmbiguityResolved || one.Ambiguity.Answer != "Employee" {
		t.Fatalf("unexpected ambiguity %+v", one.Ambiguity)
	}
}

func TestConvertDocumentRequeues(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(http.MethodPost, "/api/documents/not-a-uuid/convert", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id = %d, want 400", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/api/documents/"+uuid.NewString()+"/convert", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown document = %d, want 404", rec.Code)
	}

	doc, _ := env.convert(t)
	if rec := env.do(http.MethodPost, "/api/documents/"+doc+"/convert", nil, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("convert = %d, want 202", rec.Code)
	}
	if len(env.ch.messages[queue.ConvertQueue]) != 1 {
		t.Fatalf("expected one queued conversion")
	}
}
